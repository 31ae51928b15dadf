package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vovakirdan/duochat/internal/feed"
	"github.com/vovakirdan/duochat/internal/mocks"
	"github.com/vovakirdan/duochat/internal/store"
)

func TestService_PassesThroughToStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStore := mocks.NewMockStore(ctrl)
	svc := New(mockStore)
	ctx := context.Background()
	message := store.Message{
		ID:        "1",
		Content:   "Hello",
		Sender:    store.PersonaPrimary,
		IsSent:    true,
		Timestamp: time.Now(),
	}

	t.Run("AddMessage calls Insert", func(t *testing.T) {
		req := require.New(t)
		mockStore.EXPECT().Insert(ctx, message).Return(nil).Times(1)

		req.NoError(svc.AddMessage(ctx, message))
	})

	t.Run("UpdateMessage calls Update", func(t *testing.T) {
		req := require.New(t)
		mockStore.EXPECT().Update(ctx, message).Return(nil).Times(1)

		req.NoError(svc.UpdateMessage(ctx, message))
	})

	t.Run("GetUnreadMessages calls QueryUnread", func(t *testing.T) {
		req := require.New(t)
		mockStore.EXPECT().
			QueryUnread(ctx, store.PersonaPrimary).
			Return([]store.Message{message}, nil).
			Times(1)

		unread, err := svc.GetUnreadMessages(ctx, store.PersonaPrimary)
		req.NoError(err)
		req.Equal([]store.Message{message}, unread)
	})

	t.Run("storage errors are returned unchanged", func(t *testing.T) {
		req := require.New(t)
		diskFull := errors.New("disk full")
		mockStore.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(diskFull).Times(1)

		req.ErrorIs(svc.AddMessage(ctx, message), diskFull)
	})

	t.Run("GetMessages returns the store feed", func(t *testing.T) {
		req := require.New(t)
		subject := feed.NewSubject([]store.Message{})
		defer subject.Close()
		mockStore.EXPECT().Messages().Return(subject).Times(1)

		req.Equal(feed.Feed[[]store.Message](subject), svc.GetMessages())
	})
}
