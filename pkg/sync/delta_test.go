package sync

import (
	"testing"

	"github.com/QuilibriumNetwork/quorum-shared/pkg/models"
	"github.com/stretchr/testify/require"
)

// checkFinality asserts exactly one payload is final and it is the last.
func checkFinality(t *testing.T, payloads []SyncDelta) {
	t.Helper()
	require.NotEmpty(t, payloads)
	finals := 0
	for _, p := range payloads {
		if p.IsFinal {
			finals++
		}
	}
	require.Equal(t, 1, finals, "exactly one payload must be final")
	require.True(t, payloads[len(payloads)-1].IsFinal, "the final payload must be last")
}

func TestAssembleDeltasEmpty(t *testing.T) {
	payloads := AssembleDeltas(DeltaInput{}, 1000)
	require.Len(t, payloads, 1)
	p := payloads[0]
	require.True(t, p.IsFinal)
	require.Nil(t, p.MessageDelta)
	require.Nil(t, p.ReactionDelta)
	require.Nil(t, p.MemberDelta)
	require.Nil(t, p.PeerMapDelta)
}

func TestAssembleDeltasMessagesOnly(t *testing.T) {
	in := DeltaInput{
		NewMessages:     []models.Message{sized("n1", 1, 100), sized("n2", 2, 100)},
		UpdatedMessages: []models.Message{sized("u1", 3, 100)},
	}
	payloads := AssembleDeltas(in, 1<<20)
	checkFinality(t, payloads)
	require.Len(t, payloads, 1)
	md := payloads[0].MessageDelta
	require.NotNil(t, md)
	require.Len(t, md.NewMessages, 2)
	require.Len(t, md.UpdatedMessages, 1)
}

func TestAssembleDeltasUnionProperty(t *testing.T) {
	var newMsgs, updMsgs []models.Message
	for i := 0; i < 5; i++ {
		newMsgs = append(newMsgs, sized(string(rune('a'+i)), uint64(i+1), 300))
	}
	for i := 0; i < 3; i++ {
		updMsgs = append(updMsgs, sized(string(rune('v'+i)), uint64(i+10), 300))
	}
	payloads := AssembleDeltas(DeltaInput{NewMessages: newMsgs, UpdatedMessages: updMsgs}, 700)
	checkFinality(t, payloads)

	gotNew := map[string]bool{}
	gotUpd := map[string]bool{}
	for _, p := range payloads {
		if p.MessageDelta == nil {
			continue
		}
		for _, m := range p.MessageDelta.NewMessages {
			require.False(t, gotNew[m.ID], "message %s appeared twice", m.ID)
			gotNew[m.ID] = true
		}
		for _, m := range p.MessageDelta.UpdatedMessages {
			require.False(t, gotUpd[m.ID], "message %s appeared twice", m.ID)
			gotUpd[m.ID] = true
		}
	}
	require.Len(t, gotNew, len(newMsgs))
	require.Len(t, gotUpd, len(updMsgs))
	for _, m := range newMsgs {
		require.True(t, gotNew[m.ID])
	}
	for _, m := range updMsgs {
		require.True(t, gotUpd[m.ID])
	}
}

func TestAssembleDeltasDeletionsAndReactionsRideLastMessageChunk(t *testing.T) {
	var msgs []models.Message
	for i := 0; i < 4; i++ {
		msgs = append(msgs, sized(string(rune('a'+i)), uint64(i+1), 400))
	}
	in := DeltaInput{
		NewMessages:       msgs,
		DeletedMessageIDs: []string{"gone-1", "gone-2"},
		Reactions: []MessageReactions{
			{MessageID: "a", Reactions: []models.Reaction{{EmojiID: "👍", MemberIDs: []string{"x"}, Count: 1}}},
		},
		Members: []models.Member{{Address: "a1"}},
	}
	payloads := AssembleDeltas(in, 900)
	checkFinality(t, payloads)
	require.GreaterOrEqual(t, len(payloads), 3, "two message chunks plus trailing member payload")

	var deletions, reactions int
	lastMsgChunk := -1
	for i, p := range payloads {
		if p.MessageDelta != nil {
			lastMsgChunk = i
		}
	}
	for i, p := range payloads {
		if p.MessageDelta != nil && len(p.MessageDelta.DeletedMessageIDs) > 0 {
			deletions++
			require.Equal(t, lastMsgChunk, i, "deletions must ride the last message chunk")
		}
		if p.ReactionDelta != nil {
			reactions++
			require.Equal(t, lastMsgChunk, i, "reaction delta must ride the last message chunk")
		}
	}
	require.Equal(t, 1, deletions)
	require.Equal(t, 1, reactions)

	trailing := payloads[len(payloads)-1]
	require.NotNil(t, trailing.MemberDelta)
	require.True(t, trailing.IsFinal)
}

func TestAssembleDeltasNoMessagesButDeletions(t *testing.T) {
	payloads := AssembleDeltas(DeltaInput{DeletedMessageIDs: []string{"m9"}}, 1000)
	checkFinality(t, payloads)
	require.Len(t, payloads, 1)
	require.NotNil(t, payloads[0].MessageDelta)
	require.Equal(t, []string{"m9"}, payloads[0].MessageDelta.DeletedMessageIDs)
}

func TestAssembleDeltasMembersAndPeersOnly(t *testing.T) {
	in := DeltaInput{
		Members:          []models.Member{{Address: "a1", DisplayName: "Alice"}},
		RemovedAddresses: []string{"a9"},
		PeerEntries:      []models.PeerEntry{{PeerID: 7, KeyMaterial: []byte{1, 2, 3}}},
	}
	payloads := AssembleDeltas(in, 1000)
	checkFinality(t, payloads)
	require.Len(t, payloads, 1)
	p := payloads[0]
	require.Nil(t, p.MessageDelta)
	require.NotNil(t, p.MemberDelta)
	require.Equal(t, []string{"a9"}, p.MemberDelta.RemovedAddresses)
	require.NotNil(t, p.PeerMapDelta)
	require.Len(t, p.PeerMapDelta.Entries, 1)
}

func TestAssembleDeltasFinalOnLastMessageChunk(t *testing.T) {
	// no member or peer changes: the last message chunk carries finality
	var msgs []models.Message
	for i := 0; i < 3; i++ {
		msgs = append(msgs, sized(string(rune('a'+i)), uint64(i+1), 400))
	}
	payloads := AssembleDeltas(DeltaInput{NewMessages: msgs}, 900)
	checkFinality(t, payloads)
	last := payloads[len(payloads)-1]
	require.NotNil(t, last.MessageDelta, "no trailing payload expected")
}
