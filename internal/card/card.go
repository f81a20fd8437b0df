package card

import (
	"fmt"
	"sort"
	"strings"
)

// ParallaxTag unlocks the animated borderless style when present in Tags.
const ParallaxTag = "1696804317"

// Card represents one face of a card in the game database
type Card struct {
	Name                   string // Order_Title, or the front face title for a back face
	SetCode                string // ExpansionCode
	ArtType                string // ArtSize
	GrpID                  int64  // Unique per face
	ArtID                  int64  // Bundle filename prefix
	Tags                   string // Comma separated tag ids
	LinkedFaceGrpID        int64  // Other face of a two-faced card, 0 when none
	TitleID                int64  // Localization id of the name
	InterchangeableTitleID int64  // Localization id of the alternate name
	CollectorNumber        string
	FlipSide               bool // Name was taken from the linked face
}

func (c Card) String() string {
	if c.FlipSide {
		return c.Name + "-flip-side"
	}
	return c.Name
}

// Format renders the card as fixed width columns for listings
func (c Card) Format() string {
	return fmt.Sprintf("%-30s %-10s %-9s %-8d %-8d", c.String(), c.SetCode, c.ArtType, c.GrpID, c.ArtID)
}

// TagList splits Tags into its individual ids
func (c Card) TagList() []string {
	var tags []string
	for _, t := range strings.Split(c.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// HasTag reports whether tag is one of the card's tags
func (c Card) HasTag(tag string) bool {
	for _, t := range c.TagList() {
		if t == tag {
			return true
		}
	}
	return false
}

// WithTag returns the Tags value with tag appended, or unchanged if the card
// already carries it
func (c Card) WithTag(tag string) string {
	if c.HasTag(tag) {
		return c.Tags
	}
	if strings.TrimSpace(c.Tags) == "" {
		return tag
	}
	return c.Tags + "," + tag
}

// SortKeys are the listing columns cards can be sorted by
var SortKeys = []string{"name", "set", "arttype", "grpid", "artid"}

// Sort orders cards in place by one of SortKeys
func Sort(cards []Card, key string) error {
	var less func(a, b Card) bool
	switch strings.ToLower(key) {
	case "name":
		less = func(a, b Card) bool { return a.String() < b.String() }
	case "set":
		less = func(a, b Card) bool { return a.SetCode < b.SetCode }
	case "arttype":
		less = func(a, b Card) bool { return a.ArtType < b.ArtType }
	case "grpid":
		less = func(a, b Card) bool { return a.GrpID < b.GrpID }
	case "artid":
		less = func(a, b Card) bool { return a.ArtID < b.ArtID }
	default:
		return fmt.Errorf("unknown sort key %q (one of %s)", key, strings.Join(SortKeys, ", "))
	}
	sort.SliceStable(cards, func(i, j int) bool { return less(cards[i], cards[j]) })
	return nil
}
