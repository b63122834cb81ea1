package confirm

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"strings"
	"testing"

	"github.com/elC0mpa/aws-teardown/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		exec    model.ExecutionContext
		wantErr bool
	}{
		{name: "exact phrase", input: "destroy acme\n", wantErr: false},
		{name: "surrounding whitespace", input: "  destroy acme  \n", wantErr: false},
		{name: "yes is not enough", input: "yes\n", wantErr: true},
		{name: "wrong project", input: "destroy other\n", wantErr: true},
		{name: "end of input", input: "", wantErr: true},
		{name: "force skips the prompt", input: "", exec: model.ExecutionContext{Force: true}},
		{name: "dry run skips the prompt", input: "", exec: model.ExecutionContext{DryRun: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := NewService(strings.NewReader(tt.input), &out).Confirm(context.Background(), "acme", Plan{Matched: 3}, tt.exec)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrDeclined)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestConfirmShowsPhraseAndPlan(t *testing.T) {
	var out bytes.Buffer
	plan := Plan{
		Accounts: []string{"111111111111", "222222222222"},
		Regions:  []string{"us-east-1"},
		Services: []string{"lambda", "s3", "sns"},
		Matched:  12,
	}

	require.NoError(t, NewService(strings.NewReader("destroy acme\n"), &out).Confirm(context.Background(), "acme", plan, model.ExecutionContext{}))

	assert.Contains(t, out.String(), `"destroy acme"`)
	assert.Contains(t, out.String(), "12 resource(s)")
	assert.Contains(t, out.String(), "111111111111, 222222222222")
	assert.Contains(t, out.String(), "Services: lambda, s3, sns")
}

func TestConfirmCancelledWhileWaiting(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewService(r, io.Discard).Confirm(ctx, "acme", Plan{}, model.ExecutionContext{})

	require.ErrorIs(t, err, ErrDeclined)
	require.ErrorIs(t, err, context.Canceled)
}

func TestConfirmCancelReleasesPendingRead(t *testing.T) {
	in, peer := net.Pipe()
	defer in.Close()
	defer peer.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewService(in, io.Discard).Confirm(ctx, "acme", Plan{}, model.ExecutionContext{})
	require.ErrorIs(t, err, ErrDeclined)

	_, err = in.Read(make([]byte, 1))
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
}
