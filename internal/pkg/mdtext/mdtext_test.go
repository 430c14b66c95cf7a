package mdtext

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlain(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "  ", want: ""},
		{name: "plain text", input: "Vision and language", want: "Vision and language"},
		{name: "emphasis and link", input: "**Robust** [perception](https://example.com) in the wild", want: "Robust perception in the wild"},
		{name: "heading and list", input: "# Scope\n\n- 3D scenes\n- video", want: "Scope\n3D scenes\nvideo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Plain(tt.input))
		})
	}
}
