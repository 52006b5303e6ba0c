package domain

// Selection describes which archive files a run should fetch.
//
// Exactly one date mode may be set: Dates, Years/Months, or StartDate/EndDate.
// When none is set the enumerator falls back to its default range.
type Selection struct {
	Market      Market      `json:"market" mapstructure:"market" validate:"required,market"`
	DataTypes   []string    `json:"data_types" mapstructure:"data_types" validate:"required,min=1,dive,required"`
	Symbols     []string    `json:"symbols,omitempty" mapstructure:"symbols" validate:"dive,required"`
	Intervals   []string    `json:"intervals,omitempty" mapstructure:"intervals" validate:"dive,interval"`
	Granularity Granularity `json:"granularity" mapstructure:"granularity" validate:"required,granularity"`

	Dates     []string `json:"dates,omitempty" mapstructure:"dates" validate:"dive,isodate"`
	Years     []int    `json:"years,omitempty" mapstructure:"years" validate:"dive,min=2017,max=2100"`
	Months    []int    `json:"months,omitempty" mapstructure:"months" validate:"dive,min=1,max=12"`
	StartDate string   `json:"start_date,omitempty" mapstructure:"start_date" validate:"omitempty,isodate"`
	EndDate   string   `json:"end_date,omitempty" mapstructure:"end_date" validate:"omitempty,isodate"`
}

// RunOptions toggles per-run behavior of the fetch engine.
type RunOptions struct {
	Force            bool `json:"force" mapstructure:"force"`
	DownloadChecksum bool `json:"download_checksum" mapstructure:"download_checksum"`
	VerifyChecksum   bool `json:"verify_checksum" mapstructure:"verify_checksum"`
}

// WantsChecksum reports whether the sidecar must be fetched at all.
func (o RunOptions) WantsChecksum() bool {
	return o.DownloadChecksum || o.VerifyChecksum
}
