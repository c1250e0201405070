package report

import (
	"fmt"
	"sort"
	"time"

	"gong-wizard-go/internal/aggregator"
	perr "gong-wizard-go/internal/errors"
	"gong-wizard-go/internal/logger"
	"gong-wizard-go/internal/natsort"
	"gong-wizard-go/internal/types"
)

// SummaryGroup is the bucket holding every run-level artifact.
const SummaryGroup = types.SummaryGroup

const (
	ContentCSV  = "text/csv"
	ContentJSON = "application/json"
	ContentText = "text/plain; charset=utf-8"
	ContentXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Artifact is one named, independently downloadable output.
type Artifact struct {
	Name        string `json:"name"`
	Filename    string `json:"filename"`
	Group       string `json:"group"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// Failure records an artifact that could not be built.
type Failure struct {
	Artifact string
	Err      error
}

// Group lists the files of one bucket in natural order.
type Group struct {
	Name  string   `json:"name"`
	Files []string `json:"files"`
}

// Input is everything a report is built from.
type Input struct {
	RunID       string
	Range       types.DateRange
	Products    []string
	Calls       *aggregator.Tally
	Utterances  *aggregator.Tally
	Included    []aggregator.IncludedCall
	StartedAt   time.Time
	CompletedAt time.Time
	// Complete is false when the fetch stopped early. Only fetch stats are
	// produced for an incomplete run.
	Complete bool
}

// Report is the result of one Build. Failures never remove other artifacts.
type Report struct {
	Artifacts []Artifact
	Failures  []Failure
	Groups    []Group
}

// Artifact returns the artifact with the given name.
func (r *Report) Artifact(name string) (Artifact, bool) {
	for _, a := range r.Artifacts {
		if a.Name == name {
			return a, true
		}
	}
	return Artifact{}, false
}

type generator struct {
	name string
	// always generators also run for incomplete runs
	always bool
	build  func(Input) ([]Artifact, error)
}

type Builder struct {
	generators []generator
	log        *logger.Logger
}

func NewBuilder(log *logger.Logger) *Builder {
	if log == nil {
		log = logger.New()
	}
	return &Builder{
		log: log.Component("report"),
		generators: []generator{
			{name: ArtifactCallSummary, build: tableArtifact(ArtifactCallSummary, "summary", callSummaryTable)},
			{name: ArtifactCallExclusions, build: tableArtifact(ArtifactCallExclusions, "call_exclusions", callExclusionTable)},
			{name: ArtifactUtterances, build: tableArtifact(ArtifactUtterances, "utterances", utteranceTable)},
			{name: ArtifactUtteranceExclusions, build: tableArtifact(ArtifactUtteranceExclusions, "utterance_exclusions", utteranceExclusionTable)},
			{name: ArtifactProducts, build: tableArtifact(ArtifactProducts, "products", productTable)},
			{name: ArtifactTopics, build: tableArtifact(ArtifactTopics, "topics", topicTable)},
			{name: ArtifactTranscriptExport, build: transcriptExport},
			{name: ArtifactWorkbook, build: workbook},
			{name: ArtifactTranscripts, build: productTranscripts},
			{name: ArtifactFetchStats, always: true, build: fetchStats},
		},
	}
}

// Build runs every generator in isolation. A generator that errors or panics
// is reported as an artifact generation failure and the rest still run.
func (b *Builder) Build(in Input) *Report {
	if in.Calls == nil {
		in.Calls = aggregator.NewTally()
	}
	if in.Utterances == nil {
		in.Utterances = aggregator.NewTally()
	}
	log := b.log.WithRun(in.RunID)

	rep := &Report{}
	for _, g := range b.generators {
		if !in.Complete && !g.always {
			continue
		}
		arts, err := b.run(g, in)
		if err != nil {
			log.WithError(err).WithField("artifact", g.name).Error("artifact generation failed")
			rep.Failures = append(rep.Failures, Failure{Artifact: g.name, Err: err})
			continue
		}
		rep.Artifacts = append(rep.Artifacts, arts...)
	}
	rep.Groups = groups(rep.Artifacts, in.Products)
	log.WithField("artifacts", len(rep.Artifacts)).WithField("failures", len(rep.Failures)).Info("report built")
	return rep
}

func (b *Builder) run(g generator, in Input) (arts []Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			arts, err = nil, fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			err = perr.WithStage(perr.Wrapf(err, perr.CodeArtifactGeneration, "build %s", g.name), "report")
		}
	}()
	return g.build(in)
}

// groups buckets artifacts: the summary bucket first, then one bucket per
// selected product ordered by tag. Files inside a bucket are natural-sorted.
func groups(arts []Artifact, products []string) []Group {
	files := map[string][]string{}
	for _, a := range arts {
		files[a.Group] = append(files[a.Group], a.Filename)
	}
	tags := append([]string(nil), products...)
	sort.Strings(tags)

	out := []Group{{Name: SummaryGroup, Files: natsort.Sort(files[SummaryGroup])}}
	seen := map[string]bool{SummaryGroup: true}
	for _, tag := range tags {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, Group{Name: tag, Files: natsort.Sort(files[tag])})
	}
	return out
}
