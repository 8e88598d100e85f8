package host_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/relayout/internal/host"
	"github.com/kalambet/relayout/internal/host/hosttest"
)

func TestValueSelected(t *testing.T) {
	tests := []struct {
		name string
		v    host.Value
		want string
	}{
		{"ascii", host.Value{Text: "hello world", Selection: host.Range{Location: 6, Length: 5}}, "world"},
		{"cyrillic", host.Value{Text: "привет мир", Selection: host.Range{Location: 0, Length: 6}}, "привет"},
		{"surrogate pair", host.Value{Text: "a👍b", Selection: host.Range{Location: 1, Length: 2}}, "👍"},
		{"empty selection", host.Value{Text: "hello", Selection: host.Range{Location: 2}}, ""},
		{"out of bounds", host.Value{Text: "hi", Selection: host.Range{Location: 1, Length: 5}}, ""},
		{"negative", host.Value{Text: "hi", Selection: host.Range{Location: -1, Length: 1}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.Selected())
		})
	}
}

func TestSnapshotCloneAndEqual(t *testing.T) {
	s := host.Snapshot{Items: []host.Item{{Representations: []host.Representation{
		{Type: host.TypePlainText, Data: []byte("hi")},
		{Type: host.TypeRTF, Data: []byte(`{\rtf1 hi}`)},
	}}}}

	c := s.Clone()
	require.True(t, s.Equal(c))

	c.Items[0].Representations[1].Data[0] = 'X'
	assert.False(t, s.Equal(c), "clone must not share bytes")
	assert.Equal(t, "hi", s.String())
	assert.False(t, s.Equal(host.TextSnapshot("hi")))
	assert.True(t, host.Snapshot{}.Empty())
}

func TestWaitForChange_Changed(t *testing.T) {
	h := hosttest.New()
	start, _ := h.ChangeCount()

	go func() {
		time.Sleep(5 * time.Millisecond)
		h.SetClipboard(host.TextSnapshot("copied"))
	}()

	n, err := host.WaitForChange(context.Background(), h, start, host.DefaultBackoff)
	require.NoError(t, err)
	assert.NotEqual(t, start, n)
}

func TestWaitForChange_Timeout(t *testing.T) {
	h := hosttest.New()
	start, _ := h.ChangeCount()

	began := time.Now()
	_, err := host.WaitForChange(context.Background(), h, start, host.Backoff{
		Initial: time.Millisecond,
		Max:     4 * time.Millisecond,
		Timeout: 20 * time.Millisecond,
	})
	assert.True(t, errors.Is(err, host.ErrTimeout))
	assert.Less(t, time.Since(began), time.Second)
}

func TestWaitForChange_ContextCanceled(t *testing.T) {
	h := hosttest.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := host.WaitForChange(ctx, h, 0, host.DefaultBackoff)
	assert.ErrorIs(t, err, context.Canceled)
}
