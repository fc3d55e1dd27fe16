package ansi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvertUncolored(t *testing.T) {
	got := ColorProfileUncolored.Convert(ANSIRed)
	require.Equal(t, NoColor{}, got)
}

func TestConvertColoredPassthrough(t *testing.T) {
	require.Equal(t, ANSIRed, ColorProfileANSI.Convert(ANSIRed))
	require.Nil(t, ColorProfileANSI.Convert(nil))
}

func TestProfileStyle(t *testing.T) {
	s := Style{Bold: StyleSetOn, Foreground: ANSIGreen}
	require.Equal(t, s, ColorProfileANSI.Style(s))
	require.True(t, ColorProfileUncolored.Style(s).IsZero())
}

func TestGetColorProfileEnv(t *testing.T) {
	t.Run("no_color_wins", func(t *testing.T) {
		t.Setenv("NO_COLOR", "1")
		t.Setenv("CLICOLOR_FORCE", "1")
		require.Equal(t, ColorProfileUncolored, GetColorProfile())
	})
	t.Run("force_without_tty", func(t *testing.T) {
		t.Setenv("NO_COLOR", "")
		t.Setenv("CLICOLOR", "")
		t.Setenv("CLICOLOR_FORCE", "1")
		require.Equal(t, ColorProfileANSI, GetColorProfile())
	})
	t.Run("clicolor_zero", func(t *testing.T) {
		t.Setenv("NO_COLOR", "")
		t.Setenv("CLICOLOR", "0")
		t.Setenv("CLICOLOR_FORCE", "")
		require.Equal(t, ColorProfileUncolored, GetColorProfile())
	})
	t.Run("ci_is_not_a_tty", func(t *testing.T) {
		t.Setenv("NO_COLOR", "")
		t.Setenv("CLICOLOR", "")
		t.Setenv("CLICOLOR_FORCE", "")
		t.Setenv("CI", "true")
		require.Equal(t, ColorProfileUncolored, GetColorProfile())
	})
}
