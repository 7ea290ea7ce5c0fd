package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/speechscope/internal/audiocore/capture"
	"github.com/tphakala/speechscope/internal/conf"
	"github.com/tphakala/speechscope/internal/errors"
)

func TestCreateSource(t *testing.T) {
	t.Parallel()

	target := capture.NewBuffer(1024, 48000)
	defer target.Close()

	settings := &conf.Settings{}
	settings.Audio.SampleRate = 44100

	p, err := CreateSource(KindSoundCard, settings, target)
	require.NoError(t, err)
	assert.InDelta(t, 44100.0, p.SampleRate(), 0)

	_, err = CreateSource(KindFile, settings, target)
	require.Error(t, err, "empty input path")

	_, err = CreateSource("rtsp", settings, target)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}
