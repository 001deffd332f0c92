package voicenet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_Directed(t *testing.T) {
	t.Parallel()

	p := Parse("Raven, this is Overlord, what is your position, over.")
	require.Equal(t, "Raven", p.Recipient)
	require.Equal(t, "Overlord", p.Sender)
	require.False(t, p.IsBroadcast)
	require.Equal(t, TypeQuery, p.Type)
}

func TestParse_Broadcast(t *testing.T) {
	t.Parallel()

	p := Parse("All stations, this is Overlord, regroup at checkpoint two, over.")
	require.True(t, p.IsBroadcast)
	require.Equal(t, "Overlord", p.Sender)
	require.Equal(t, "ALL", p.Recipient)
}

func TestParse_RecipientOnly(t *testing.T) {
	t.Parallel()

	p := Parse("Raven, roger that, over.")
	require.Equal(t, "Raven", p.Recipient)
	require.Equal(t, TypeAcknowledgment, p.Type)
}

func TestClassify_PriorityOrder(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		want MessageType
	}{
		{"ack wins over query", "roger, what now?", TypeAcknowledgment},
		{"query wins over command", "what should I search for?", TypeQuery},
		{"command wins over request", "please search the archive", TypeCommand},
		{"request falls through", "could you confirm position", TypeRequest},
		{"default report", "enemy convoy spotted heading north", TypeReport},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, classify(tc.body))
		})
	}
}

func TestNormalizeCallsign(t *testing.T) {
	t.Parallel()

	require.Equal(t, "RAVEN-ONE", NormalizeCallsign("raven_one"))
	require.Equal(t, "RAVEN-ONE", NormalizeCallsign("Raven  One."))
	require.Equal(t, NormalizeCallsign("Overlord,"), NormalizeCallsign("OVERLORD"))
}

func TestFormat_Roundtrip(t *testing.T) {
	t.Parallel()

	p := Parsed{Sender: "Overlord", Recipient: "Raven", Body: "hold position"}
	out := Format(p)
	require.Equal(t, "Raven, this is Overlord, hold position, over.", out)

	reparsed := Parse(out)
	require.Equal(t, p.Sender, reparsed.Sender)
	require.Equal(t, p.Recipient, reparsed.Recipient)
}
