package replace

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/relayout/internal/host"
	"github.com/kalambet/relayout/internal/host/hosttest"
)

func richClipboard() host.Snapshot {
	return host.Snapshot{Items: []host.Item{
		{Representations: []host.Representation{
			{Type: host.TypePlainText, Data: []byte("original")},
			{Type: host.TypeRTF, Data: []byte(`{\rtf1 original}`)},
			{Type: host.TypeHTML, Data: []byte("<b>original</b>")},
		}},
		{Representations: []host.Representation{
			{Type: "public.png", Data: []byte{0x89, 'P', 'N', 'G'}},
		}},
	}}
}

func newTestReplacer(h *hosttest.Host, sched *hosttest.Scheduler) *Replacer {
	opts := DefaultOptions()
	opts.After = sched.After
	opts.Sleep = func(time.Duration) {}
	return New(h, opts, nil)
}

func TestReplace_AXDirect(t *testing.T) {
	h := hosttest.New()
	h.SetClipboard(richClipboard())
	before, _ := h.ChangeCount()
	sched := &hosttest.Scheduler{}

	by, err := newTestReplacer(h, sched).Replace(context.Background(), "привет")
	require.NoError(t, err)
	assert.Equal(t, AXDirect, by)
	assert.Equal(t, []string{"привет"}, h.SetCalls())

	after, _ := h.ChangeCount()
	assert.Equal(t, before, after, "direct set must not touch the clipboard")
	assert.Zero(t, sched.Pending())
}

func TestReplace_PasteFallbackRestoresClipboard(t *testing.T) {
	h := hosttest.New()
	h.SetErr = errors.New("attribute is read-only")
	original := richClipboard()
	h.SetClipboard(original)
	sched := &hosttest.Scheduler{}

	by, err := newTestReplacer(h, sched).Replace(context.Background(), "привет")
	require.NoError(t, err)
	assert.Equal(t, ClipboardPaste, by)
	assert.Equal(t, []string{"привет"}, h.Pasted())

	// The converted text stays on the clipboard until the restore fires.
	assert.Equal(t, "привет", h.Clipboard().String())
	require.Equal(t, 1, sched.Pending())
	assert.Equal(t, []time.Duration{DefaultOptions().RestoreDelay}, sched.Delays())

	sched.RunAll()
	assert.True(t, original.Equal(h.Clipboard()), "clipboard must equal the snapshot after restore")
	assert.Equal(t, 1, h.Restores())
}

func TestReplace_TransientMarker(t *testing.T) {
	h := hosttest.New()
	h.SetErr = host.ErrUnsupported
	sched := &hosttest.Scheduler{}

	_, err := newTestReplacer(h, sched).Replace(context.Background(), "x")
	require.NoError(t, err)

	reps := h.Clipboard().Items[0].Representations
	var types []string
	for _, r := range reps {
		types = append(types, r.Type)
	}
	assert.Contains(t, types, host.TypeTransient)
}

func TestReplace_PasteFailureRestoresImmediately(t *testing.T) {
	h := hosttest.New()
	h.SetErr = host.ErrNoFocus
	h.ShortcutErr = map[host.Shortcut]error{host.ShortcutPaste: errors.New("blocked")}
	original := richClipboard()
	h.SetClipboard(original)
	sched := &hosttest.Scheduler{}

	_, err := newTestReplacer(h, sched).Replace(context.Background(), "привет")
	assert.ErrorIs(t, err, ErrReplacementFailed)
	assert.Zero(t, sched.Pending(), "no delayed restore after a failed paste")
	assert.True(t, original.Equal(h.Clipboard()))
	assert.Equal(t, 1, h.Restores())
}

func TestReplace_UnreadableClipboardIsLeftAlone(t *testing.T) {
	h := hosttest.New()
	h.SetErr = host.ErrUnsupported
	h.SnapshotErr = errors.New("no clipboard utility")
	original := richClipboard()
	h.SetClipboard(original)
	before, _ := h.ChangeCount()
	sched := &hosttest.Scheduler{}

	_, err := newTestReplacer(h, sched).Replace(context.Background(), "привет")
	assert.ErrorIs(t, err, ErrReplacementFailed)
	assert.Empty(t, h.Pasted())
	assert.Zero(t, sched.Pending())
	assert.Zero(t, h.Restores())

	after, _ := h.ChangeCount()
	assert.Equal(t, before, after, "clipboard must not be written")
	assert.True(t, original.Equal(h.Clipboard()))
}

func TestReplace_RestoreRunsOnce(t *testing.T) {
	h := hosttest.New()
	h.SetErr = host.ErrUnsupported
	sched := &hosttest.Scheduler{}
	r := newTestReplacer(h, sched)

	saved := richClipboard()
	restore := r.restoreOnce(saved)
	restore()
	restore()
	assert.Equal(t, 1, h.Restores())
}

func TestReplace_RestorePanicRecovered(t *testing.T) {
	r := New(panickyHost{Host: hosttest.New()}, DefaultOptions(), nil)
	assert.NotPanics(t, func() { r.restoreOnce(host.Snapshot{})() })
}

type panickyHost struct{ *hosttest.Host }

func (panickyHost) Restore(host.Snapshot) error { panic("pasteboard gone") }

func TestReplace_RealSchedulerFiresAfterContextEnds(t *testing.T) {
	h := hosttest.New()
	h.SetErr = host.ErrUnsupported
	original := richClipboard()
	h.SetClipboard(original)

	opts := DefaultOptions()
	opts.RestoreDelay = 5 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	_, err := New(h, opts, nil).Replace(ctx, "x")
	require.NoError(t, err)
	cancel()

	assert.Eventually(t, func() bool { return original.Equal(h.Clipboard()) }, time.Second, 5*time.Millisecond)
}

func TestReplaceTerminal_ErasesThenPastes(t *testing.T) {
	h := hosttest.New()
	sched := &hosttest.Scheduler{}

	by, err := newTestReplacer(h, sched).ReplaceTerminal(context.Background(), "ghbdtn", "привет")
	require.NoError(t, err)
	assert.Equal(t, TerminalErase, by)

	assert.Equal(t, []host.Shortcut{host.ShortcutEndOfLine, host.ShortcutPaste}, h.Shortcuts())
	keys := h.Keystrokes()
	require.Len(t, keys, len("ghbdtn")+DefaultOptions().BackspaceSlack)
	for _, k := range keys {
		assert.Equal(t, host.KeyBackspace, k.Key)
		assert.Zero(t, k.Mods, "backspace must carry no modifiers")
	}
	assert.Equal(t, []string{"привет"}, h.Pasted())
	assert.Empty(t, h.SetCalls(), "terminal path never uses accessibility set")
}

func TestReplaceTerminal_CeilingCapsBackspaces(t *testing.T) {
	h := hosttest.New()
	sched := &hosttest.Scheduler{}
	r := newTestReplacer(h, sched)

	_, err := r.ReplaceTerminal(context.Background(), strings.Repeat("x", 1000), "y")
	require.NoError(t, err)
	assert.Len(t, h.Keystrokes(), DefaultOptions().BackspaceCeiling)
}

func TestReplaceTerminal_CountsGraphemes(t *testing.T) {
	r := newTestReplacer(hosttest.New(), &hosttest.Scheduler{})
	assert.Equal(t, 6+2, r.BackspaceCount("привет"))
	assert.Equal(t, 1+2, r.BackspaceCount("👨‍👩‍👧"))
}

func TestReplaceTerminal_EraseFailureSkipsPaste(t *testing.T) {
	h := hosttest.New()
	h.KeystrokeErr = errors.New("input blocked")
	original := richClipboard()
	h.SetClipboard(original)
	sched := &hosttest.Scheduler{}

	_, err := newTestReplacer(h, sched).ReplaceTerminal(context.Background(), "ls", "ды")
	assert.ErrorIs(t, err, ErrReplacementFailed)
	assert.Empty(t, h.Pasted())
	assert.True(t, original.Equal(h.Clipboard()))
	assert.Zero(t, sched.Pending())
}
