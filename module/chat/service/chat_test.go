package service

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ProjectHub/module/chat/model"
	"ProjectHub/module/chat/store"
	"ProjectHub/service/realtime"
	"ProjectHub/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pushed struct {
	key     string
	payload realtime.Payload
}

type fakePush struct {
	mu     sync.Mutex
	online map[string]bool
	sent   []pushed
}

func (f *fakePush) record(key string, payload any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, pushed{key: key, payload: payload.(realtime.Payload)})
	return f.online[key]
}

func (f *fakePush) Notify(_ context.Context, key string, payload any) realtime.Result {
	if f.record(key, payload) {
		return realtime.Result{Key: key, Status: realtime.Delivered}
	}
	return realtime.Result{Key: key, Status: realtime.NotRegistered}
}

func (f *fakePush) SendTo(key string, payload any) bool { return f.record(key, payload) }

type names map[string]string

func (n names) DisplayName(_ context.Context, id string) string { return n[id] }

type onlineList []string

func (o onlineList) ListOnline() []string { return o }

type recEvents struct{ kinds []string }

func (r *recEvents) Emit(kind, _, _, _ string) { r.kinds = append(r.kinds, kind) }

type fixture struct {
	svc   *Service
	push  *fakePush
	rooms *realtime.RoomTable
	ev    *recEvents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		push:  &fakePush{online: map[string]bool{"t1": true}},
		rooms: realtime.NewRoomTable(),
		ev:    &recEvents{},
	}
	f.svc = New(Deps{
		Store:     store.NewMemory(),
		Push:      f.push,
		Rooms:     f.rooms,
		Names:     names{"s1": "Ana", "t1": "Prof"},
		Online:    onlineList{"u2", "u1"},
		Events:    f.ev,
		UploadDir: t.TempDir(),
		MaxUpload: 64,
	})
	tick := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return f
}

func TestSendMessageCreatesConversationThenPushes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.SendMessage(ctx, SendParams{SenderID: "s1", SenderRole: "student", ReceiverID: "t1", Message: "hola"})
	require.NoError(t, err)
	assert.True(t, res.Delivered)
	assert.NotEmpty(t, res.MessageID)

	conv, err := f.svc.store.FindConversation(ctx, res.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "s1", conv.StudentID)
	assert.Equal(t, "Ana", conv.StudentName)
	assert.Equal(t, "Prof", conv.TeacherName)
	assert.Equal(t, int64(1), conv.UnreadTeacher)
	assert.Equal(t, int64(0), conv.UnreadStudent)
	assert.Equal(t, "hola", conv.LastMessage)

	// 房间成员来自会话
	assert.Equal(t, []string{"s1", "t1"}, f.rooms.Members(conv.RoomID))

	require.Len(t, f.push.sent, 1)
	p := f.push.sent[0]
	assert.Equal(t, "t1", p.key)
	assert.Equal(t, realtime.EventNewMessage, p.payload.Type)
	assert.Equal(t, res.ConversationID, p.payload.ConversationID)
	assert.Equal(t, []string{"message_sent"}, f.ev.kinds)

	// 教师回复走同一个会话，receiver 离线不影响结果
	res2, err := f.svc.SendMessage(ctx, SendParams{SenderID: "t1", SenderRole: "teacher", ReceiverID: "s1", Message: "ok"})
	require.NoError(t, err)
	assert.Equal(t, res.ConversationID, res2.ConversationID)
	assert.False(t, res2.Delivered)

	conv, err = f.svc.store.FindConversation(ctx, res.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), conv.UnreadStudent)
}

func TestCoordinatorTakesTeacherSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.SendMessage(ctx, SendParams{SenderID: "c1", SenderRole: "coordinator", ReceiverID: "s1", Message: "x"})
	require.NoError(t, err)
	conv, err := f.svc.store.FindConversation(ctx, res.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "c1", conv.TeacherID)
	assert.Equal(t, "s1", conv.StudentID)

	n, err := f.svc.UnreadCount(ctx, "s1", "student")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTeacherToCoordinatorInbox(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.SendMessage(ctx, SendParams{SenderID: "t9", SenderRole: "teacher", ReceiverID: "c1", Message: "informe"})
	require.NoError(t, err)
	conv, err := f.svc.store.FindConversation(ctx, res.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "c1", conv.StudentID)

	convs, err := f.svc.Conversations(ctx, "c1", "coordinator")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, res.ConversationID, convs[0].ConversationID)

	n, err := f.svc.UnreadCount(ctx, "c1", "coordinator")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// 协调员回复走同一个会话，未读记给教师
	res2, err := f.svc.SendMessage(ctx, SendParams{SenderID: "c1", SenderRole: "coordinator", ReceiverID: "t9", Message: "recibido"})
	require.NoError(t, err)
	assert.Equal(t, res.ConversationID, res2.ConversationID)

	require.NoError(t, f.svc.MarkAsRead(ctx, res.ConversationID, "c1", "coordinator"))
	conv, err = f.svc.store.FindConversation(ctx, res.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), conv.UnreadStudent)
	assert.Equal(t, int64(1), conv.UnreadTeacher)

	n, err = f.svc.UnreadCount(ctx, "t9", "teacher")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStaleConversationIDStartsNewConversation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.SendMessage(ctx, SendParams{SenderID: "s1", SenderRole: "student", ReceiverID: "t1", Message: "x", ConversationID: "nope"})
	require.NoError(t, err)
	assert.NotEqual(t, "nope", res.ConversationID)

	again, err := f.svc.SendMessage(ctx, SendParams{SenderID: "s1", SenderRole: "student", ReceiverID: "t1", Message: "y", ConversationID: "gone"})
	require.NoError(t, err)
	assert.Equal(t, res.ConversationID, again.ConversationID)
}

func TestSendMessageValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cases := []SendParams{
		{SenderID: "", SenderRole: "student", ReceiverID: "t1", Message: "x"},
		{SenderID: "s1", SenderRole: "student", ReceiverID: "s1", Message: "x"},
		{SenderID: "s1", SenderRole: "student", ReceiverID: "t1", Message: "  "},
		{SenderID: "s1", SenderRole: "dean", ReceiverID: "t1", Message: "x"},
	}
	for _, p := range cases {
		_, err := f.svc.SendMessage(ctx, p)
		assert.ErrorIs(t, err, errs.ErrArgs)
	}
	assert.Empty(t, f.push.sent)

	res, err := f.svc.SendMessage(ctx, SendParams{SenderID: "s1", SenderRole: "student", ReceiverID: "t1", Message: "x"})
	require.NoError(t, err)
	_, err = f.svc.SendMessage(ctx, SendParams{SenderID: "s9", SenderRole: "student", ReceiverID: "t1", Message: "x", ConversationID: res.ConversationID})
	assert.ErrorIs(t, err, errs.ErrNoPermission)
}

func TestMessagesMarkReadAndUnread(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var convID string
	for _, m := range []string{"a", "b", "c"} {
		res, err := f.svc.SendMessage(ctx, SendParams{SenderID: "s1", SenderRole: "student", ReceiverID: "t1", Message: m})
		require.NoError(t, err)
		convID = res.ConversationID
	}

	msgs, err := f.svc.Messages(ctx, convID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "a", msgs[0].Message)
	assert.Equal(t, "c", msgs[2].Message)

	msgs, err = f.svc.Messages(ctx, convID, 2)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	n, err := f.svc.UnreadCount(ctx, "t1", "teacher")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.NoError(t, f.svc.MarkAsRead(ctx, convID, "", "teacher"))
	n, err = f.svc.UnreadCount(ctx, "t1", "teacher")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	msgs, err = f.svc.Messages(ctx, convID, 0)
	require.NoError(t, err)
	for _, m := range msgs {
		assert.True(t, m.Read)
	}

	assert.ErrorIs(t, f.svc.MarkAsRead(ctx, convID, "", "x"), errs.ErrArgs)
	assert.ErrorIs(t, f.svc.MarkAsRead(ctx, "nope", "t1", "teacher"), errs.ErrRecordNotFound)
	_, err = f.svc.Conversations(ctx, "t1", "")
	assert.ErrorIs(t, err, errs.ErrArgs)
}

func TestConversationsSortedAndChatIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.SendMessage(ctx, SendParams{SenderID: "s1", SenderRole: "student", ReceiverID: "t1", Message: "1"})
	require.NoError(t, err)
	_, err = f.svc.SendMessage(ctx, SendParams{SenderID: "s2", SenderRole: "student", ReceiverID: "t1", Message: "2"})
	require.NoError(t, err)

	convs, err := f.svc.Conversations(ctx, "t1", "teacher")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "s2", convs[0].StudentID)

	// 新的房间表：从库里恢复成员
	f.svc.rooms = realtime.NewRoomTable()
	rooms, err := f.svc.ChatIDs(ctx, "t1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{realtime.DirectRoomID("s1", "t1"), realtime.DirectRoomID("s2", "t1")}, rooms)

	rooms, err = f.svc.ChatIDs(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, rooms)
	assert.NotNil(t, rooms)
}

func TestSimpleChat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.SendSimple(ctx, SimpleParams{SenderID: "u1", ReceiverID: "t1", Message: "hey"})
	require.NoError(t, err)
	assert.True(t, res.Delivered)
	assert.Equal(t, realtime.DirectRoomID("u1", "t1"), res.RoomID)
	assert.True(t, f.rooms.IsMember(res.RoomID, "u1"))

	_, err = f.svc.SendSimple(ctx, SimpleParams{SenderID: "t1", ReceiverID: "u1", FileURL: "/f.png", FileName: "f.png"})
	require.NoError(t, err)

	_, err = f.svc.SendSimple(ctx, SimpleParams{SenderID: "t1", ReceiverID: "u1"})
	assert.ErrorIs(t, err, errs.ErrArgs)

	msgs, err := f.svc.SimpleMessages(ctx, "t1", "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hey", msgs[0].Message)
	assert.Equal(t, "f.png", msgs[1].FileName)

	n, err := f.svc.MarkSimpleRead(ctx, res.RoomID, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	on := f.svc.OnlineUsers()
	assert.Equal(t, []string{"u1", "u2"}, on.OnlineUsers)
	assert.Equal(t, 2, on.TotalOnline)
}

func fileHeader(t *testing.T, name, ctype string, body []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	h.Set("Content-Type", ctype)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["file"][0]
}

var pngHead = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestUploadAndDownload(t *testing.T) {
	f := newFixture(t)

	info, err := f.svc.Upload(fileHeader(t, "pic.PNG", "image/png", pngHead))
	require.NoError(t, err)
	assert.Equal(t, "image/png", info.FileType)
	assert.Equal(t, "pic.PNG", info.FileName)
	assert.Equal(t, int64(len(pngHead)), info.Size)

	name := filepath.Base(info.FileURL)
	assert.Equal(t, ".png", filepath.Ext(name))
	path, ct, err := f.svc.Download(name)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pngHead, data)

	// 文本文件，声明的类型不可信
	info, err = f.svc.Upload(fileHeader(t, "notes.txt", "image/png", []byte("just text")))
	require.NoError(t, err)
	assert.Equal(t, "text/plain", info.FileType)

	_, err = f.svc.Upload(fileHeader(t, "big.txt", "text/plain", bytes.Repeat([]byte("a"), 100)))
	assert.ErrorIs(t, err, errs.ErrFileTooLarge)

	_, err = f.svc.Upload(fileHeader(t, "a.zip", "application/zip", []byte("PK\x03\x04\x14\x00\x00\x00\x08\x00")))
	assert.ErrorIs(t, err, errs.ErrFileType)

	for _, bad := range []string{"../secret", "..", "a/b.png", `a\b.png`, ""} {
		_, _, err := f.svc.Download(bad)
		assert.ErrorIs(t, err, errs.ErrArgs, bad)
	}
	_, _, err = f.svc.Download("missing.png")
	assert.ErrorIs(t, err, errs.ErrRecordNotFound)
}

func TestSlotMapping(t *testing.T) {
	assert.Equal(t, model.SlotStudent, model.SlotOf("student"))
	assert.Equal(t, model.SlotTeacher, model.SlotOf("coordinator"))
}
