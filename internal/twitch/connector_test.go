package twitch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gempir/go-twitch-irc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/john/commander/internal/message"
)

type said struct{ channel, text string }

type fakeIRC struct {
	mu        sync.Mutex
	onConnect func()
	onPrivMsg func(twitch.PrivateMessage)
	joined    []string
	said      []said
	connected chan struct{}
	done      chan struct{}
	failWith  error
}

func newFakeIRC() *fakeIRC {
	return &fakeIRC{connected: make(chan struct{}), done: make(chan struct{})}
}

func (f *fakeIRC) OnConnect(cb func()) { f.onConnect = cb }
func (f *fakeIRC) OnPrivateMessage(cb func(twitch.PrivateMessage)) { f.onPrivMsg = cb }
func (f *fakeIRC) OnReconnectMessage(func(twitch.ReconnectMessage)) {}
func (f *fakeIRC) Join(channels ...string) { f.joined = append(f.joined, channels...) }

func (f *fakeIRC) Say(channel, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.said = append(f.said, said{channel, text})
}

func (f *fakeIRC) Connect() error {
	if f.failWith != nil {
		return f.failWith
	}
	f.onConnect()
	close(f.connected)
	<-f.done
	return twitch.ErrClientDisconnected
}

func (f *fakeIRC) Disconnect() error {
	close(f.done)
	return nil
}

func newTestConnector(fake *fakeIRC) *Connector {
	c := New("commander", "oauth:secret", "", "#PlanetaryAnnihilation")
	c.newClient = func(string, string) ircClient { return fake }
	return c
}

func TestConnectorDeliversRoomMessages(t *testing.T) {
	fake := newFakeIRC()
	c := newTestConnector(fake)
	assert.Equal(t, "planetaryannihilation", c.Room())

	got := make(chan message.ChatMessage, 1)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Start(ctx, func(_ context.Context, msg message.ChatMessage) { got <- msg })
	}()

	select {
	case <-fake.connected:
	case <-time.After(time.Second):
		t.Fatal("connector never connected")
	}
	assert.Equal(t, []string{"planetaryannihilation"}, fake.joined)
	assert.True(t, c.Connected())

	fake.onPrivMsg(twitch.PrivateMessage{
		User:    twitch.User{Name: "alice", DisplayName: "Alice"},
		Channel: "planetaryannihilation",
		Message: "!now",
	})
	assert.Equal(t, message.ChatMessage{Sender: "alice", Room: "planetaryannihilation", Body: "!now"}, <-got)

	require.NoError(t, c.Send("#planetaryannihilation", "banner\nStream #1: x", "<strong>banner</strong>"))
	assert.Equal(t, []said{{"planetaryannihilation", "banner | Stream #1: x"}}, fake.said)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.False(t, c.Connected())
}

func TestConnectorConnectFailure(t *testing.T) {
	fake := newFakeIRC()
	fake.failWith = errors.New("login authentication failed")
	c := newTestConnector(fake)

	err := c.Start(context.Background(), func(context.Context, message.ChatMessage) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login authentication failed")
}

func TestSendBeforeStart(t *testing.T) {
	c := New("commander", "oauth:secret", "", "room")
	assert.ErrorIs(t, c.Send("room", "hi", "hi"), ErrNotConnected)
}

func TestSendWritesSingleIRCLine(t *testing.T) {
	fake := newFakeIRC()
	c := newTestConnector(fake)
	c.client = fake

	require.NoError(t, c.Send("room", "Stream #1: desc by evil\rPRIVMSG #other :spam (http://x)", ""))
	require.NoError(t, c.Send("room", "a\r\nb\x00\x01ACTION c\x01", ""))
	require.NoError(t, c.Send("room", "one\n\ntwo", ""))

	assert.Equal(t, []said{
		{"room", "Stream #1: desc by evilPRIVMSG #other :spam (http://x)"},
		{"room", "a | bACTION c"},
		{"room", "one |  | two"},
	}, fake.said)
	for _, s := range fake.said {
		assert.NotContains(t, s.text, "\r")
		assert.NotContains(t, s.text, "\x00")
	}
}
