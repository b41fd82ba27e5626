package record

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandEncode(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{
			name: "verb only",
			cmd:  NewCommand(VerbDisconnect),
			want: "disconnect",
		},
		{
			name: "verb with one argument",
			cmd:  NewCommand(VerbConnect, "device-1"),
			want: "connect device-1",
		},
		{
			name: "verb with several arguments",
			cmd:  NewCommand(VerbConfigure, "channels", "on", "off", "on"),
			want: "configure channels on off on",
		},
		{
			name: "quit",
			cmd:  NewCommand(VerbQuit),
			want: "quit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.cmd.Encode())
		})
	}
}

func TestCommandValidate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		wantErr string
	}{
		{
			name: "valid",
			cmd:  NewCommand(VerbSelect, "a1:b2:c3"),
		},
		{
			name:    "empty verb",
			cmd:     Command{},
			wantErr: "empty verb",
		},
		{
			name:    "verb with whitespace",
			cmd:     Command{Verb: "con nect"},
			wantErr: "contains whitespace",
		},
		{
			name:    "empty argument",
			cmd:     NewCommand(VerbConnect, ""),
			wantErr: "argument 0 is empty",
		},
		{
			name:    "argument with newline",
			cmd:     NewCommand(VerbEcho, "hello\nquit"),
			wantErr: "line break",
		},
		{
			name:    "argument with carriage return",
			cmd:     NewCommand(VerbEcho, "hello\rworld"),
			wantErr: "line break",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()

			if tt.wantErr == "" {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
