package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPasses(t *testing.T) {
	tests := []struct {
		name string
		pass func(string) string
		in   string
		want string
	}{
		{"fence removed", StripCodeFences, "antes\n```python\nprint('x')\n```\ndespués", "antes\n\ndespués"},
		{"unclosed fence", StripCodeFences, "texto\n```\ncódigo", "texto\n"},
		{"heading", HeadingsToBold, "### Técnicas útiles", "**Técnicas útiles**"},
		{"closed heading", HeadingsToBold, "## Paso uno ##", "**Paso uno**"},
		{"hash without space", HeadingsToBold, "#hashtag", "#hashtag"},
		{"bullet glyphs", NormalizeBullets, "• uno\n  ● dos\n* tres\n+ cuatro", "- uno\n  - dos\n- tres\n- cuatro"},
		{"bold is not a bullet", NormalizeBullets, "**Nota** importante", "**Nota** importante"},
		{"rule is not a bullet", NormalizeBullets, "---", "---"},
		{"starred rule", NormalizeBullets, "uno\n* * *\ndos", "uno\n* * *\ndos"},
		{"underscore rule", NormalizeBullets, "  _ _ _", "  _ _ _"},
		{"link", StripLinks, "Lee [esto](https://a.b/c) y ![img](x.png)", "Lee esto y img"},
		{"stray emphasis", StripStrayEmphasis, "pala**bra y re__la__ja", "palabra y relaja"},
		{"edge emphasis kept", StripStrayEmphasis, "**Importante**: respira", "**Importante**: respira"},
		{"digits kept", StripStrayEmphasis, "3*4=12 y 2_000", "3*4=12 y 2_000"},
		{"snake_case kept", StripStrayEmphasis, "usa archivo_config.yaml y mi_var", "usa archivo_config.yaml y mi_var"},
		{"dotted identifier kept", StripStrayEmphasis, "abre config__local.yaml", "abre config__local.yaml"},
		{"merged bold drops its opener", StripStrayEmphasis, "**hola**mundo y **otro**", "holamundo y **otro**"},
		{"lines are independent", StripStrayEmphasis, "**uno\ndos**tres", "**uno\ndostres"},
		{"blank lines", CollapseBlankLines, "a\n\n\n\nb\r\n\r\n\r\nc", "a\n\nb\n\nc"},
		{"single blank kept", CollapseBlankLines, "a\n\nb", "a\n\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.pass(tt.in))
		})
	}
}

func TestDefaultPipeline_Order(t *testing.T) {
	var names []string
	for _, p := range DefaultPipeline {
		names = append(names, p.Name)
	}
	require.Equal(t, []string{
		"strip_code_fences",
		"headings_to_bold",
		"normalize_bullets",
		"strip_links",
		"strip_stray_emphasis",
		"collapse_blank_lines",
		"trim",
	}, names)
}

func TestDefaultPipeline_KeepsNumbersAndIdentifiers(t *testing.T) {
	tests := map[string]string{
		"3*4=12 y 2_000":            "3*4=12 y 2_000",
		"usa archivo_config.yaml":   "usa archivo_config.yaml",
		"**hola**mundo":             "holamundo",
		"Antes\n\n* * *\n\nDespués": "Antes\n\n* * *\n\nDespués",
	}
	for in, want := range tests {
		require.Equal(t, want, DefaultPipeline.Run(in), in)
	}
}

func TestDefaultPipeline_CodeNeverFeedsBullets(t *testing.T) {
	in := "  # Ejercicio\n\n```\n* no es viñeta\n# ni título\n```\n\n\n\n• Respira [hondo](http://x)  \n"
	require.Equal(t, "**Ejercicio**\n\n- Respira hondo", DefaultPipeline.Run(in))
}
