package asset

import (
	"bytes"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetManager(t *testing.T) {
	am := NewManager()

	t.Run("GetTemplate", func(t *testing.T) {
		for _, name := range []string{"index.html", "result.html"} {
			tmpl, err := am.GetTemplate(name)
			assert.NoError(t, err, name)
			assert.NotNil(t, tmpl, name)
		}

		_, err := am.GetTemplate("non_existent.html")
		assert.Error(t, err)
	})

	t.Run("Render index", func(t *testing.T) {
		var buf bytes.Buffer
		err := am.Render(&buf, "index.html", map[string]any{
			"Error":       "video could not be opened",
			"Caption":     `<script>alert(1)</script>`,
			"Kind":        "video",
			"MaxUploadMB": 200,
			"Version":     "test",
		})
		require.NoError(t, err)

		out := buf.String()
		assert.Contains(t, out, `name="file"`)
		assert.Contains(t, out, `name="caption"`)
		assert.Contains(t, out, `value="video" checked`)
		assert.Contains(t, out, "video could not be opened")
		assert.NotContains(t, out, `<script>alert(1)</script>`, "caption must be escaped")
	})

	t.Run("Render result", func(t *testing.T) {
		var buf bytes.Buffer
		err := am.Render(&buf, "result.html", map[string]any{
			"Kind":    "image",
			"URL":     "/outputs/augmented_image.jpg",
			"Path":    "/home/u/augmented_videos/augmented_image.jpg",
			"Width":   640,
			"Height":  480,
			"Frames":  1,
			"Applied": "flip=true",
			"Version": "test",
		})
		require.NoError(t, err)
		assert.Contains(t, buf.String(), `<img src="/outputs/augmented_image.jpg?inline=1"`)
		assert.Contains(t, buf.String(), "640×480")
	})

	t.Run("GetText", func(t *testing.T) {
		text, err := am.GetText("static/style.css")
		assert.NoError(t, err)
		assert.NotEmpty(t, text)

		_, err = am.GetText("non_existent.txt")
		assert.Error(t, err)
	})

	t.Run("Static", func(t *testing.T) {
		data, err := fs.ReadFile(am.Static(), "style.css")
		assert.NoError(t, err)
		assert.NotEmpty(t, data)
	})
}
