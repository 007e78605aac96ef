// Package pipeline runs a credit report through segmentation, extraction,
// validation, rule evaluation, risk aggregation and timeline analysis.
package pipeline

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reage-cli/internal/config"
	"github.com/sells-group/reage-cli/internal/dates"
	"github.com/sells-group/reage-cli/internal/extract"
	"github.com/sells-group/reage-cli/internal/model"
	"github.com/sells-group/reage-cli/internal/risk"
	"github.com/sells-group/reage-cli/internal/rules"
	"github.com/sells-group/reage-cli/internal/segment"
	"github.com/sells-group/reage-cli/internal/series"
	"github.com/sells-group/reage-cli/internal/timeline"
)

// BureauUnspecified is the bureau hint that adds nothing to extraction.
const BureauUnspecified = "unspecified"

// HintSourcePrefix marks a field supplied by the caller rather than read
// from the report text.
const HintSourcePrefix = "caller hint: bureau="

// Input is one report to analyze.
type Input struct {
	Text     string `json:"text"`
	Bureau   string `json:"bureau,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

// Account is the full analysis of one account block.
type Account struct {
	Index     int                   `json:"index"`
	Extracted model.ExtractedFields `json:"extracted"`
	Fields    model.CreditFields    `json:"fields"`
	Warnings  []string              `json:"warnings"`
	Flags     []model.RuleFlag      `json:"flags"`
	Risk      model.RiskProfile     `json:"riskProfile"`
	Timeline  timeline.Timeline     `json:"timeline"`
	// Window is set when the account has a recognizable DOFD.
	Window *dates.Window          `json:"reportingWindow,omitempty"`
	Series []model.SeriesInsight `json:"series,omitempty"`
}

// Result is the analysis of one report.
type Result struct {
	FileName   string    `json:"fileName,omitempty"`
	Bureau     string    `json:"bureau"`
	AnalyzedAt time.Time `json:"analyzedAt"`
	Accounts   []Account `json:"accounts"`
}

// Analyzer holds the configured stages. It is safe for concurrent use.
type Analyzer struct {
	segmenter     *segment.Segmenter
	extractor     *extract.Extractor
	engine        *rules.Engine
	defaultBureau string
	now           func() time.Time
}

// New builds an Analyzer from configuration. now stamps results and drives
// time-relative rules; nil means time.Now.
func New(analysis config.AnalysisConfig, rc config.RulesConfig, now func() time.Time) (*Analyzer, error) {
	if now == nil {
		now = time.Now
	}
	opts := []rules.Option{rules.WithNow(now)}
	if rc.OverridesFile != "" {
		o, err := rules.LoadOverrides(rc.OverridesFile)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: load rule overrides")
		}
		opts = append(opts, rules.WithOverrides(o))
	}
	if len(rc.Disabled) > 0 {
		opts = append(opts, rules.WithDisabled(rc.Disabled...))
	}
	engine, err := rules.New(opts...)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: build rule engine")
	}

	bureau := analysis.DefaultBureau
	if bureau == "" {
		bureau = BureauUnspecified
	}
	return &Analyzer{
		segmenter:     segment.New(analysis.MinSegmentLength),
		extractor:     extract.New(),
		engine:        engine,
		defaultBureau: bureau,
		now:           now,
	}, nil
}

// Engine exposes the configured rule engine.
func (a *Analyzer) Engine() *rules.Engine { return a.engine }

// Analyze runs every stage over in. Text that does not segment is analyzed
// as a single account, so the result always holds at least one account.
func (a *Analyzer) Analyze(in Input) Result {
	bureau := strings.ToLower(strings.TrimSpace(in.Bureau))
	if bureau == "" {
		bureau = a.defaultBureau
	}
	now := a.now()

	blocks := a.segmenter.Segment(in.Text)
	if len(blocks) == 0 {
		blocks = []string{in.Text}
	}

	res := Result{
		FileName:   in.FileName,
		Bureau:     bureau,
		AnalyzedAt: now,
		Accounts:   make([]Account, 0, len(blocks)),
	}
	for i, block := range blocks {
		res.Accounts = append(res.Accounts, a.account(i, block, bureau, now))
	}

	zap.L().Debug("pipeline: analyzed report",
		zap.String("file", in.FileName),
		zap.String("bureau", bureau),
		zap.Int("accounts", len(res.Accounts)),
	)
	return res
}

func (a *Analyzer) account(i int, block, bureau string, now time.Time) Account {
	ext := a.extractor.Extract(block)
	warnings := append([]string{}, extract.ValidateExtracted(ext)...)

	// The hint fills a missing bureau but never overrides text evidence.
	if bureau != BureauUnspecified {
		if _, ok := ext[model.FieldBureau]; !ok {
			ext[model.FieldBureau] = model.ExtractedField{
				Value:      bureau,
				Confidence: model.ConfidenceLow,
				SourceText: HintSourcePrefix + bureau,
			}
		}
	}
	fields := ext.Simple()
	for _, f := range extract.FutureDates(fields, now) {
		warnings = append(warnings, f.Label()+" is in the future")
	}

	flags := a.engine.Evaluate(fields)
	acc := Account{
		Index:     i,
		Extracted: ext,
		Fields:    fields,
		Warnings:  warnings,
		Flags:     flags,
		Risk:      risk.Aggregate(flags),
		Timeline:  timeline.Analyze(timeline.BuildEvents(fields, flags)),
	}
	if dofd, ok := fields.Get(model.FieldDOFD); ok {
		if w, ok := dates.CreditReportingWindow(dofd, now); ok {
			acc.Window = &w
		}
	}

	zap.L().Debug("pipeline: analyzed account",
		zap.Int("index", i),
		zap.Int("fields", len(fields)),
		zap.Int("flags", len(flags)),
		zap.Int("score", acc.Risk.OverallScore),
	)
	return acc
}

// Identifiable reports whether the account names a creditor, a furnisher
// or an account number. Report preambles and headers segment into blocks
// that carry none of these.
func (acc Account) Identifiable() bool {
	return acc.Fields.Has(model.FieldOriginalCreditor) ||
		acc.Fields.Has(model.FieldFurnisherOrCollector) ||
		acc.Fields.Has(model.FieldAccountNumber)
}

// CompareSeries attaches series insights to every account of res against
// prior, which is treated as a read-only snapshot.
func CompareSeries(res *Result, prior []model.AnalysisRecord) {
	for i := range res.Accounts {
		acc := &res.Accounts[i]
		acc.Series = series.Compare(prior, acc.Fields, res.AnalyzedAt)
		if len(acc.Series) > 0 {
			zap.L().Info("pipeline: series drift detected",
				zap.Int("index", acc.Index),
				zap.Int("insights", len(acc.Series)),
			)
		}
	}
}

// Record converts an account analysis into a storable record. ID and
// Timestamp are left for the store to assign.
func (acc Account) Record(fileName string, tags []string) model.AnalysisRecord {
	return model.AnalysisRecord{
		FileName:    fileName,
		Fields:      acc.Fields.Clone(),
		Flags:       acc.Flags,
		RiskProfile: acc.Risk,
		Tags:        tags,
	}
}
