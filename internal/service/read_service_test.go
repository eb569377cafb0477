package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whisprapp/whispr/internal/bus"
	"github.com/whisprapp/whispr/pkg/apperrors"
)

func TestMarkAsRead(t *testing.T) {
	ctx := context.Background()

	t.Run("advances cursor and clears unread", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.createUser(t, "alice")
		bob := env.createUser(t, "bob")
		conv, _, err := env.conversations.CreatePrivate(ctx, alice.ID, bob.ID)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			_, err := env.messages.Send(ctx, bob.ID, conv.ID, sendRequest(alice, bob))
			require.NoError(t, err)
			time.Sleep(time.Millisecond)
		}

		count, err := env.reads.UnreadCount(ctx, alice.ID, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)

		resp, err := env.reads.MarkAsRead(ctx, alice.ID, conv.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), resp.MarkedCount)

		count, err = env.reads.UnreadCount(ctx, alice.ID, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})

	t.Run("publishes read receipt echoing the message id", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.createUser(t, "alice")
		bob := env.createUser(t, "bob")
		conv, _, err := env.conversations.CreatePrivate(ctx, alice.ID, bob.ID)
		require.NoError(t, err)

		msg, err := env.messages.Send(ctx, bob.ID, conv.ID, sendRequest(alice, bob))
		require.NoError(t, err)

		var receipts []bus.ReadReceiptEvent
		defer env.bus.SubscribeReadReceipts(func(evt bus.ReadReceiptEvent) { receipts = append(receipts, evt) })()

		_, err = env.reads.MarkAsRead(ctx, alice.ID, conv.ID, &msg.ID)
		require.NoError(t, err)

		require.Len(t, receipts, 1)
		assert.Equal(t, alice.ID, receipts[0].UserID)
		require.NotNil(t, receipts[0].MessageID)
		assert.Equal(t, msg.ID, *receipts[0].MessageID)
	})

	t.Run("marked count excludes the caller's own messages", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.createUser(t, "alice")
		bob := env.createUser(t, "bob")
		conv, _, err := env.conversations.CreatePrivate(ctx, alice.ID, bob.ID)
		require.NoError(t, err)

		_, err = env.messages.Send(ctx, alice.ID, conv.ID, sendRequest(alice, bob))
		require.NoError(t, err)
		_, err = env.messages.Send(ctx, bob.ID, conv.ID, sendRequest(alice, bob))
		require.NoError(t, err)

		// the count mirrors what the unread badge showed: only the
		// counterpart's message, never the caller's own
		resp, err := env.reads.MarkAsRead(ctx, alice.ID, conv.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), resp.MarkedCount)
	})

	t.Run("cursor is monotonic", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.createUser(t, "alice")
		bob := env.createUser(t, "bob")
		conv, _, err := env.conversations.CreatePrivate(ctx, alice.ID, bob.ID)
		require.NoError(t, err)

		_, err = env.reads.MarkAsRead(ctx, alice.ID, conv.ID, nil)
		require.NoError(t, err)
		first, err := env.convRepo.FindParticipant(conv.ID, alice.ID)
		require.NoError(t, err)
		require.NotNil(t, first.LastReadAt)

		time.Sleep(time.Millisecond)
		_, err = env.reads.MarkAsRead(ctx, alice.ID, conv.ID, nil)
		require.NoError(t, err)
		second, err := env.convRepo.FindParticipant(conv.ID, alice.ID)
		require.NoError(t, err)
		assert.True(t, second.LastReadAt.After(*first.LastReadAt))

		// a stale write under the current cursor is discarded
		stale := second.LastReadAt.Add(-time.Hour)
		require.NoError(t, env.convRepo.UpdateLastRead(conv.ID, alice.ID, stale))
		after, err := env.convRepo.FindParticipant(conv.ID, alice.ID)
		require.NoError(t, err)
		assert.True(t, after.LastReadAt.Equal(*second.LastReadAt))
	})

	t.Run("requires active participant", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.createUser(t, "alice")
		bob := env.createUser(t, "bob")
		eve := env.createUser(t, "eve")
		conv, _, err := env.conversations.CreatePrivate(ctx, alice.ID, bob.ID)
		require.NoError(t, err)

		_, err = env.reads.MarkAsRead(ctx, eve.ID, conv.ID, nil)
		assert.True(t, apperrors.Is(err, apperrors.CodePermissionDenied))
	})
}

func TestRequireActiveParticipant(t *testing.T) {
	ctx := context.Background()

	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	eve := env.createUser(t, "eve")
	conv, _, err := env.conversations.CreatePrivate(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	assert.NoError(t, env.reads.RequireActiveParticipant(ctx, alice.ID, conv.ID))

	// never a participant
	err = env.reads.RequireActiveParticipant(ctx, eve.ID, conv.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodePermissionDenied))

	// a leaver loses access
	require.NoError(t, env.conversations.Leave(ctx, bob.ID, conv.ID))
	err = env.reads.RequireActiveParticipant(ctx, bob.ID, conv.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodePermissionDenied))
}

func TestUnreadCount(t *testing.T) {
	ctx := context.Background()

	t.Run("excludes own and deleted messages", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.createUser(t, "alice")
		bob := env.createUser(t, "bob")
		conv, _, err := env.conversations.CreatePrivate(ctx, alice.ID, bob.ID)
		require.NoError(t, err)

		// own message never counts
		_, err = env.messages.Send(ctx, alice.ID, conv.ID, sendRequest(alice, bob))
		require.NoError(t, err)

		_, err = env.messages.Send(ctx, bob.ID, conv.ID, sendRequest(alice, bob))
		require.NoError(t, err)
		deleted, err := env.messages.Send(ctx, bob.ID, conv.ID, sendRequest(alice, bob))
		require.NoError(t, err)
		require.NoError(t, env.messages.Delete(ctx, bob.ID, deleted.ID))

		count, err := env.reads.UnreadCount(ctx, alice.ID, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("only messages after the cursor count", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.createUser(t, "alice")
		bob := env.createUser(t, "bob")
		conv, _, err := env.conversations.CreatePrivate(ctx, alice.ID, bob.ID)
		require.NoError(t, err)

		_, err = env.messages.Send(ctx, bob.ID, conv.ID, sendRequest(alice, bob))
		require.NoError(t, err)
		_, err = env.reads.MarkAsRead(ctx, alice.ID, conv.ID, nil)
		require.NoError(t, err)

		time.Sleep(time.Millisecond)
		_, err = env.messages.Send(ctx, bob.ID, conv.ID, sendRequest(alice, bob))
		require.NoError(t, err)

		count, err := env.reads.UnreadCount(ctx, alice.ID, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}
