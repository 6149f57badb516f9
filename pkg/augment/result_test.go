package augment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"image", KindImage, false},
		{"video", KindVideo, false},
		{" Video ", KindVideo, false},
		{"audio", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidInput)
				var ae *Error
				require.True(t, errors.As(err, &ae))
				assert.Equal(t, CodeUnknownKind, ae.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestResult_Message(t *testing.T) {
	ok := Result{Status: Success, Path: "/tmp/augmented_videos/augmented_image.jpg"}
	assert.True(t, ok.OK())
	assert.NoError(t, ok.Error())
	assert.Equal(t, ok.Path, ok.Message())

	bad := failed(KindVideo, "job", newError(InvalidInput, CodeVideoUnopenable, "probe failed", errors.New("exit status 1")))
	assert.False(t, bad.OK())
	assert.Equal(t, "video could not be opened", bad.Message())
	assert.ErrorIs(t, bad.Error(), ErrInvalidInput)
	assert.NotErrorIs(t, bad.Error(), ErrEncodingFailure)

	enc := failed(KindImage, "job", newError(EncodingFailure, CodeEncode, "disk full", nil))
	assert.ErrorIs(t, enc.Error(), ErrEncodingFailure)
	assert.Equal(t, "output file could not be written", enc.Message())

	custom := Result{Status: InvalidInput, Code: Code("something_new"), Reason: "raw reason"}
	assert.Equal(t, "raw reason", custom.Message())
}

func TestFailed_WrapsForeignErrors(t *testing.T) {
	cause := errors.New("boom")
	res := failed(KindImage, "job", cause)
	assert.Equal(t, EncodingFailure, res.Status)
	assert.Equal(t, CodeEncode, res.Code)
	assert.ErrorIs(t, res.Error(), cause)
}
