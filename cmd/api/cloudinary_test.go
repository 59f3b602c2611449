package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateImageExtension(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		wantErr  bool
	}{
		{name: "png", filename: "cover.png", wantErr: false},
		{name: "jpeg", filename: "shot.jpeg", wantErr: false},
		{name: "uppercase extension", filename: "COVER.PNG", wantErr: false},
		{name: "webp", filename: "art.webp", wantErr: false},
		{name: "executable", filename: "payload.exe", wantErr: true},
		{name: "script", filename: "evil.sh", wantErr: true},
		{name: "no extension", filename: "noext", wantErr: true},
		{name: "double extension keeps last", filename: "cover.png.exe", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateImageExtension(tt.filename)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedMediaType)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestMediaPublicID_UniquePerCall(t *testing.T) {
	a := mediaPublicID("game", 7)
	b := mediaPublicID("game", 7)

	require.True(t, strings.HasPrefix(a, "game_7_"))
	require.True(t, strings.HasPrefix(b, "game_7_"))
	require.NotEqual(t, a, b)
}
