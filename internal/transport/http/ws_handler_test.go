package http

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pulsechat/internal/core"
	"pulsechat/internal/proto"
)

func TestWebSocketChatFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	aliceToken := env.register(t, "alice", "secret1")
	bobToken := env.register(t, "bob", "secret1")

	aliceConn := env.dialWS(t, ctx)
	sendFrame(t, ctx, aliceConn, proto.InboundTypeHello, proto.HelloData{Token: aliceToken})

	snap := decodeData[proto.OnlineUsersData](t, awaitEvent(t, ctx, aliceConn, proto.EventOnlineUsers))
	require.Len(t, snap.Users, 1)
	require.Equal(t, "alice", snap.Users[0].Handle)
	aliceID := snap.Users[0].ID

	bobConn := env.dialWS(t, ctx)
	sendFrame(t, ctx, bobConn, proto.InboundTypeHello, proto.HelloData{Token: bobToken})

	joined := decodeData[proto.PresenceData](t, awaitEvent(t, ctx, aliceConn, proto.EventUserJoined))
	require.Equal(t, "bob", joined.Handle)
	bobID := joined.UserID

	snap = decodeData[proto.OnlineUsersData](t, awaitEvent(t, ctx, bobConn, proto.EventOnlineUsers))
	require.Len(t, snap.Users, 2)

	// Broadcast reaches everyone, the sender included.
	sendFrame(t, ctx, aliceConn, proto.InboundTypeSend, proto.SendData{To: proto.BroadcastTarget, Content: "hello everyone"})

	broadcast := decodeData[proto.MessageData](t, awaitEvent(t, ctx, bobConn, proto.EventMessage))
	require.Equal(t, "hello everyone", broadcast.Content)
	require.Equal(t, aliceID, broadcast.Sender.ID)
	require.True(t, broadcast.IsRead)

	echo := decodeData[proto.MessageData](t, awaitEvent(t, ctx, aliceConn, proto.EventMessage))
	require.Equal(t, broadcast.ID, echo.ID)

	// Private message flows only through the pair, then the read receipt
	// flows back.
	sendFrame(t, ctx, bobConn, proto.InboundTypeSend, proto.SendData{To: strconv.FormatInt(aliceID, 10), Content: "psst"})

	private := decodeData[proto.MessageData](t, awaitEvent(t, ctx, aliceConn, proto.EventMessage))
	require.Equal(t, "psst", private.Content)
	require.Equal(t, bobID, private.Sender.ID)
	require.False(t, private.IsRead)

	sendFrame(t, ctx, aliceConn, proto.InboundTypeRead, proto.ReadData{MessageID: private.ID})

	receipt := decodeData[proto.MessageReadData](t, awaitEvent(t, ctx, bobConn, proto.EventMessageRead))
	require.Equal(t, private.ID, receipt.MessageID)

	// Typing indicators skip the typist.
	sendFrame(t, ctx, aliceConn, proto.InboundTypeTyping, proto.TypingData{To: proto.BroadcastTarget, IsTyping: true})

	typing := decodeData[proto.TypingEventData](t, awaitEvent(t, ctx, bobConn, proto.EventTyping))
	require.Equal(t, aliceID, typing.UserID)
	require.True(t, typing.IsTyping)
	require.False(t, typing.Private)
}

func TestWebSocketRejectsInvalidCredential(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conn := env.dialWS(t, ctx)
	sendFrame(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{Token: "not-a-token"})

	f := readFrame(t, ctx, conn)
	require.Equal(t, proto.OutboundTypeError, f.Type)
	require.NotNil(t, f.Error)
	require.Equal(t, core.ErrCodeAuthentication, f.Error.Code)

	// A rejected handshake performs no partial registration.
	snapCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.Empty(t, env.hub.Snapshot(snapCtx))
}

func TestWebSocketFirstFrameMustBeHello(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conn := env.dialWS(t, ctx)
	sendFrame(t, ctx, conn, proto.InboundTypeSend, proto.SendData{To: proto.BroadcastTarget, Content: "hi"})

	f := readFrame(t, ctx, conn)
	require.Equal(t, proto.OutboundTypeError, f.Type)
	require.NotNil(t, f.Error)
	require.Equal(t, core.ErrCodeAuthentication, f.Error.Code)
}

func TestWebSocketSecondHelloRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	token := env.register(t, "alice", "secret1")

	conn := env.dialWS(t, ctx)
	sendFrame(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{Token: token})
	awaitEvent(t, ctx, conn, proto.EventOnlineUsers)

	sendFrame(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{Token: token})

	f := readFrame(t, ctx, conn)
	require.Equal(t, proto.OutboundTypeError, f.Type)
	require.Equal(t, core.ErrCodeValidation, f.Error.Code)
}

func TestWebSocketValidationErrorKeepsConnection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	token := env.register(t, "alice", "secret1")

	conn := env.dialWS(t, ctx)
	sendFrame(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{Token: token})
	awaitEvent(t, ctx, conn, proto.EventOnlineUsers)

	// Bad recipient is reported on this connection only; the connection
	// survives.
	sendFrame(t, ctx, conn, proto.InboundTypeSend, proto.SendData{To: "not-an-id", Content: "hi"})

	f := readFrame(t, ctx, conn)
	require.Equal(t, proto.OutboundTypeError, f.Type)
	require.Equal(t, core.ErrCodeValidation, f.Error.Code)

	// Still usable afterwards.
	sendFrame(t, ctx, conn, proto.InboundTypeSend, proto.SendData{To: proto.BroadcastTarget, Content: "hi"})
	msg := decodeData[proto.MessageData](t, awaitEvent(t, ctx, conn, proto.EventMessage))
	require.Equal(t, "hi", msg.Content)
}
