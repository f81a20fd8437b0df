// Package setswap replaces the art and names of a whole set of cards with
// those of another set from the catalog.
package setswap

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcanaland/arenaswap/internal/apperr"
	"github.com/arcanaland/arenaswap/internal/card"
	"github.com/arcanaland/arenaswap/internal/cardstore"
	"github.com/arcanaland/arenaswap/internal/catalog"
	"github.com/arcanaland/arenaswap/internal/imaging"
	"github.com/arcanaland/arenaswap/internal/ledger"
	"github.com/arcanaland/arenaswap/internal/texture"
)

// Saga art sits on the right half of the printed card. These fractions
// cut it out of the full card image before it is scaled to SagaSize.
const (
	sagaTop    = 0.12
	sagaBottom = 0.83
	sagaRight  = 0.92
)

// SagaSize is the texture size Saga art is scaled to.
var SagaSize = image.Pt(256, 512)

// Swap is one entry of a swap file.
type Swap struct {
	SourceCardName  string `json:"source_card_name"`
	TargetCardName  string `json:"target_card_name"`
	ExpansionCode   string `json:"expansion_code"`
	CollectorNumber string `json:"collector_number"`
	TargetAPIURL    string `json:"target_api_url,omitempty"`
	// Older swap files name the target by its web page.
	TargetScryfallURL string `json:"target_scryfall_url,omitempty"`
}

// TargetURL is the catalog reference of the replacement card.
func (s Swap) TargetURL() string {
	if s.TargetAPIURL != "" {
		return s.TargetAPIURL
	}
	return s.TargetScryfallURL
}

// LoadSwaps reads a swap file.
func LoadSwaps(path string) ([]Swap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.NotFound("swap file %s does not exist", path)
		}
		return nil, apperr.IO(err, "read swap file %s", path)
	}
	var swaps []Swap
	if err := json.Unmarshal(data, &swaps); err != nil {
		return nil, apperr.Validation(err, "malformed swap file %s", path)
	}
	return swaps, nil
}

// WriteSwaps writes swaps as an indented JSON array.
func WriteSwaps(path string, swaps []Swap) error {
	data, err := json.MarshalIndent(swaps, "", "    ")
	if err != nil {
		return fmt.Errorf("encode swaps: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return apperr.IO(err, "write swap file %s", path)
	}
	return nil
}

// Catalog is the part of the catalog client the orchestrator uses.
type Catalog interface {
	SearchSet(ctx context.Context, code string) ([]catalog.Card, error)
	Card(ctx context.Context, ref string) (*catalog.Card, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Generate matches the cards of sourceSet and targetSet by oracle id and
// returns a swap that puts each target card's art and name on the source
// card, ordered by oracle id.
func Generate(ctx context.Context, cat Catalog, sourceSet, targetSet string) ([]Swap, error) {
	source, err := cat.SearchSet(ctx, sourceSet)
	if err != nil {
		return nil, err
	}
	target, err := cat.SearchSet(ctx, targetSet)
	if err != nil {
		return nil, err
	}

	byOracle := func(cards []catalog.Card) map[string]catalog.Card {
		m := make(map[string]catalog.Card, len(cards))
		for _, c := range cards {
			if c.OracleID != "" {
				m[c.OracleID] = c
			}
		}
		return m
	}
	sourceMap, targetMap := byOracle(source), byOracle(target)

	var oracleIDs []string
	for id := range sourceMap {
		if _, ok := targetMap[id]; ok {
			oracleIDs = append(oracleIDs, id)
		}
	}
	sort.Strings(oracleIDs)

	var swaps []Swap
	for _, id := range oracleIDs {
		src, dst := sourceMap[id], targetMap[id]
		sourceName := src.PrintedName
		if sourceName == "" {
			sourceName = dst.Name
		}
		s := Swap{
			SourceCardName:  dst.DisplayName(),
			TargetCardName:  sourceName,
			ExpansionCode:   strings.ToUpper(src.Set),
			CollectorNumber: src.CollectorNumber,
			TargetAPIURL:    dst.URI,
		}
		if s.SourceCardName == "" || s.TargetCardName == "" || s.ExpansionCode == "" ||
			s.CollectorNumber == "" || s.TargetAPIURL == "" {
			continue
		}
		swaps = append(swaps, s)
	}
	if len(swaps) == 0 {
		return nil, apperr.NotFound("no cards in common between %s and %s", sourceSet, targetSet)
	}
	return swaps, nil
}

// Outcome is the result of one swap.
type Outcome struct {
	Swap    Swap
	GrpID   int64
	Bundles []string
	Err     error
}

// Report summarizes a run.
type Report struct {
	RunID    string
	Outcomes []Outcome
}

// Succeeded counts the swaps that completed.
func (r *Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the swaps that did not complete.
func (r *Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Orchestrator runs swap files.
type Orchestrator struct {
	store    *cardstore.Store
	ledger   *ledger.Ledger
	resolver *texture.Resolver
	mutator  *texture.Mutator
	catalog  Catalog
	scratch  string
	logger   *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithScratchDir sets where downloaded images are kept during a run.
func WithScratchDir(dir string) Option {
	return func(o *Orchestrator) { o.scratch = dir }
}

// New returns an Orchestrator.
func New(store *cardstore.Store, led *ledger.Ledger, resolver *texture.Resolver, mutator *texture.Mutator, cat Catalog, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		ledger:   led,
		resolver: resolver,
		mutator:  mutator,
		catalog:  cat,
		scratch:  os.TempDir(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run applies swaps in order. A failing swap is recorded in the report and
// the run moves on. The touched cards are snapshotted into the ledger and
// the scratch directory is removed however the run ends.
func (o *Orchestrator) Run(ctx context.Context, swaps []Swap) (report *Report, err error) {
	report = &Report{RunID: uuid.NewString()}
	log := o.logger.With(zap.String("run_id", report.RunID))

	sess, err := o.store.Begin(ctx)
	if err != nil {
		return report, err
	}
	defer sess.Rollback()

	cards := make(map[int]card.Card, len(swaps))
	for i, s := range swaps {
		c, err := sess.ByCollectorNumber(ctx, s.ExpansionCode, s.CollectorNumber)
		if err != nil {
			log.Debug("swap has no card", zap.String("set", s.ExpansionCode), zap.String("number", s.CollectorNumber), zap.Error(err))
			continue
		}
		cards[i] = c
	}
	if len(cards) == 0 {
		return report, apperr.NotFound("none of the %d swaps match a card in the database", len(swaps))
	}

	dir := filepath.Join(o.scratch, "arenaswap-"+report.RunID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return report, apperr.IO(err, "create scratch directory")
	}
	defer os.RemoveAll(dir)

	op := o.ledger.Begin()
	var touched []int64
	defer func() {
		if snapErr := op.Snapshot(ctx, sess, touched); snapErr != nil && err == nil {
			err = snapErr
		}
		if err == nil {
			err = sess.Commit()
		}
	}()

	for i, s := range swaps {
		c, ok := cards[i]
		if !ok {
			report.Outcomes = append(report.Outcomes, Outcome{
				Swap: s,
				Err:  apperr.NotFound("no card %s #%s", s.ExpansionCode, s.CollectorNumber),
			})
			continue
		}
		touched = append(touched, c.GrpID)
		bundles, swapErr := o.swap(ctx, sess, op, dir, s, c)
		if swapErr != nil {
			log.Warn("swap failed", zap.String("card", s.SourceCardName), zap.Error(swapErr))
		}
		report.Outcomes = append(report.Outcomes, Outcome{Swap: s, GrpID: c.GrpID, Bundles: bundles, Err: swapErr})
	}
	log.Info("set swap finished", zap.Int("ok", report.Succeeded()), zap.Int("failed", len(report.Failed())))
	return report, nil
}

func (o *Orchestrator) swap(ctx context.Context, sess *cardstore.Session, op *ledger.Op, dir string, s Swap, c card.Card) ([]string, error) {
	if s.TargetURL() == "" {
		return nil, apperr.Validation(nil, "swap for %s has no target url", s.SourceCardName)
	}
	target, err := o.catalog.Card(ctx, s.TargetURL())
	if err != nil {
		return nil, err
	}

	var bundles []string
	face := c
	for idx, images := range target.FaceImages() {
		if idx == 1 {
			back, ok, err := sess.LinkedFace(ctx, c.GrpID)
			if err != nil {
				return bundles, err
			}
			if !ok {
				break
			}
			face = back
		}
		name, err := o.replaceArt(ctx, dir, face, images, target.IsSaga())
		if err != nil {
			return bundles, err
		}
		if _, err := op.BackupFile(name); err != nil {
			return bundles, err
		}
		bundles = append(bundles, name)
	}
	if len(bundles) == 0 {
		return nil, apperr.NotFound("%s has no images", s.TargetURL())
	}

	if err := o.setName(ctx, sess, c.GrpID, c.TitleID, s.SourceCardName); err != nil {
		return bundles, err
	}
	if c.InterchangeableTitleID != 0 {
		if err := o.setName(ctx, sess, c.GrpID, c.InterchangeableTitleID, s.TargetCardName); err != nil {
			return bundles, err
		}
	}
	return bundles, nil
}

func (o *Orchestrator) setName(ctx context.Context, sess *cardstore.Session, grpID, locID int64, name string) error {
	if _, err := sess.SetLocalization(ctx, locID, name); err != nil {
		return err
	}
	return o.ledger.RecordLocalization(grpID, locID, name)
}

// replaceArt downloads the art for one face and writes it into the face's
// bundle. It returns the bundle filename.
func (o *Orchestrator) replaceArt(ctx context.Context, dir string, c card.Card, images catalog.ImageURIs, saga bool) (string, error) {
	kind := "art_crop"
	if saga {
		kind = "png"
	}
	url := images[kind]
	if url == "" {
		return "", apperr.NotFound("no %s image for %s", kind, c)
	}
	data, err := o.catalog.Download(ctx, url)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("%d.png", c.GrpID)), data, 0644); err != nil {
		return "", apperr.IO(err, "write scratch image")
	}

	var src imaging.Source = imaging.Raw(data)
	if saga {
		img, err := imaging.Decode(src)
		if err != nil {
			return "", err
		}
		src = imaging.Decoded{Image: CropSaga(img)}
	}

	res, err := o.resolver.ResolveCard(ctx, c)
	if err != nil {
		return "", err
	}
	primary, err := res.Primary()
	if err != nil {
		return "", err
	}
	if err := o.mutator.Replace(primary, src, res.Path, res.Env); err != nil {
		return "", err
	}
	return res.Filename, nil
}

// CropSaga cuts the art panel out of a full Saga card image and scales it
// to SagaSize.
func CropSaga(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	rect := image.Rect(w/2, int(float64(h)*sagaTop), int(float64(w)*sagaRight), int(float64(h)*sagaBottom)).Add(b.Min)
	return imaging.Resize(imaging.Crop(img, rect), SagaSize.X, SagaSize.Y)
}
