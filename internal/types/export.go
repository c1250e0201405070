package types

// ExportRange is the date range as written into a transcript export.
type ExportRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Export is the transcript export document: the included calls of one run with
// their included utterances. The offline dataset source reads it back.
type Export struct {
	Range    ExportRange `json:"range"`
	Products []string    `json:"products"`
	Calls    []Call      `json:"calls"`
}

func NewExportRange(r DateRange) ExportRange {
	return ExportRange{Start: r.Start.Format(dateLayout), End: r.End.Format(dateLayout)}
}
