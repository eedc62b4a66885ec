package layout

// DefaultPipelineConfig 返回与生产配置一致的默认参数。
func DefaultPipelineConfig() PipelineConfig {
	body := FontResource{Name: "Body", Src: "embed:go-regular"}
	bold := FontResource{Name: "Bold", Src: "embed:go-bold"}
	return PipelineConfig{
		GapMm:      2,
		Margins:    Margins{WrapMarginMm: 15, TopMarginMm: 10},
		Caption:    TextLimits{MinFontSizePx: 16, DefaultFontSizePx: 48, MaxLines: 2, LineHeight: 1.2},
		SpineTitle: TextLimits{MinFontSizePx: 8, DefaultFontSizePx: 28, MaxLines: 2, LineHeight: 1.15},
		SpineSmall: TextLimits{MinFontSizePx: 6, DefaultFontSizePx: 14, MaxLines: 1, LineHeight: 1.2},
		Fonts:      FieldFonts{Caption: bold, SpineTitle: bold, SpineSmall: body},
	}
}
