package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/nashenas/anonbot/internal/engine"
	"github.com/nashenas/anonbot/internal/mailbox"
	"github.com/nashenas/anonbot/internal/telegram"
)

type sentMessage struct {
	ID     int
	ChatID int64
	Text   string
	Markup any
}

type copiedMessage struct {
	To        int64
	FromChat  int64
	MessageID int
}

// fakeAPI records outbound Bot API traffic.
type fakeAPI struct {
	mu       sync.Mutex
	nextID   int
	sent     []sentMessage
	copied   []copiedMessage
	failSend map[int64]bool
	chats    map[int64]*telegram.Chat
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		failSend: make(map[int64]bool),
		chats:    make(map[int64]*telegram.Chat),
	}
}

func (f *fakeAPI) SendMessage(_ context.Context, chatID int64, text string, markup any) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend[chatID] {
		return nil, fmt.Errorf("fake: chat %d blocked the bot", chatID)
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{ID: f.nextID, ChatID: chatID, Text: text, Markup: markup})
	return &telegram.Message{MessageID: f.nextID, Chat: telegram.Chat{ID: chatID}}, nil
}

func (f *fakeAPI) CopyMessage(_ context.Context, to, from int64, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend[to] {
		return fmt.Errorf("fake: chat %d blocked the bot", to)
	}
	f.copied = append(f.copied, copiedMessage{To: to, FromChat: from, MessageID: id})
	return nil
}

func (f *fakeAPI) GetChat(_ context.Context, chatID int64) (*telegram.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.chats[chatID]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("fake: chat %d not found", chatID)
}

func (f *fakeAPI) AnswerCallbackQuery(context.Context, string) error { return nil }

func (f *fakeAPI) lastTo(chatID int64) (sentMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].ChatID == chatID {
			return f.sent[i], true
		}
	}
	return sentMessage{}, false
}

func (f *fakeAPI) copies() []copiedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]copiedMessage(nil), f.copied...)
}

type recordedAnon struct {
	From, To int64
	Text     string
}

// fakeDirectory is an in-memory Directory.
type fakeDirectory struct {
	mu     sync.Mutex
	users  map[int64]string // id -> username
	groups map[int64]string
	links  map[[2]int64]bool
	anon   []recordedAnon
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users:  make(map[int64]string),
		groups: make(map[int64]string),
		links:  make(map[[2]int64]bool),
	}
}

func (d *fakeDirectory) AddUser(_ context.Context, id int64, username, _, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[id] = strings.ToLower(strings.TrimPrefix(username, "@"))
	return nil
}

func (d *fakeDirectory) UserExists(_ context.Context, id int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.users[id]
	return ok, nil
}

func (d *fakeDirectory) UserIDByUsername(_ context.Context, username string) (int64, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	want := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
	for id, u := range d.users {
		if u == want && u != "" {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (d *fakeDirectory) AddGroup(_ context.Context, id int64, title string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.groups[id] = title
	return nil
}

func (d *fakeDirectory) LinkUserGroup(_ context.Context, userID, groupID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.links[[2]int64{userID, groupID}] = true
	return nil
}

func (d *fakeDirectory) RecordAnonMessage(_ context.Context, from, to int64, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.anon = append(d.anon, recordedAnon{From: from, To: to, Text: text})
	return nil
}

func newTestBot(t *testing.T) (*Bot, *fakeAPI, *fakeDirectory, *mailbox.Store) {
	t.Helper()
	api := newFakeAPI()
	dir := newFakeDirectory()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	mb := mailbox.NewStore(rdb)

	eng := engine.New(engine.Config{}, NewNotifier(api, nil), NewDeliverer(api), engine.NopAuditSink{})
	return New(api, eng, dir, mb, engine.NopAuditSink{}, "anonbot"), api, dir, mb
}

func privateMsg(user int64, text string) *telegram.Update {
	return privateMsgID(user, 1, text)
}

func privateMsgID(user int64, msgID int, text string) *telegram.Update {
	return &telegram.Update{Message: &telegram.Message{
		MessageID: msgID,
		From:      &telegram.User{ID: user, FirstName: "U"},
		Chat:      telegram.Chat{ID: user, Type: "private"},
		Text:      text,
	}}
}

func callback(user int64, data string) *telegram.Update {
	return &telegram.Update{CallbackQuery: &telegram.CallbackQuery{
		ID:   "cb",
		From: telegram.User{ID: user},
		Data: data,
	}}
}

// pairUsers walks two users through the gender and target prompts until the
// engine pairs them.
func pairUsers(t *testing.T, b *Bot, a, c int64) {
	t.Helper()
	b.HandleUpdate(callback(a, telegram.CallbackSelfMale))
	b.HandleUpdate(callback(a, telegram.CallbackTargetAny))
	b.HandleUpdate(callback(c, telegram.CallbackSelfFemale))
	b.HandleUpdate(callback(c, telegram.CallbackTargetAny))
	if p, ok := b.engine.PartnerOf(engine.UserID(a)); !ok || p != engine.UserID(c) {
		t.Fatalf("users %d and %d did not pair", a, c)
	}
}

func TestStart_ShowsMenu(t *testing.T) {
	b, api, _, _ := newTestBot(t)

	b.HandleUpdate(privateMsg(1, "/start"))

	msg, ok := api.lastTo(1)
	if !ok || msg.Text != textWelcome {
		t.Fatalf("last message = %+v, want welcome", msg)
	}
	if _, ok := msg.Markup.(telegram.ReplyKeyboardMarkup); !ok {
		t.Errorf("welcome should carry the main menu keyboard, got %T", msg.Markup)
	}
}

func TestStart_DeepLinkOpensMailboxTarget(t *testing.T) {
	b, api, _, mb := newTestBot(t)
	api.chats[99] = &telegram.Chat{ID: 99, FirstName: "Alice"}

	b.HandleUpdate(privateMsg(2, "/start 99"))

	owner, ok, err := mb.Target(context.Background(), 2)
	if err != nil || !ok || owner != 99 {
		t.Fatalf("target = %d,%v,%v, want 99,true,nil", owner, ok, err)
	}
	msg, _ := api.lastTo(2)
	if !strings.Contains(msg.Text, "Alice") {
		t.Errorf("link-opened message should name the owner, got %q", msg.Text)
	}
}

func TestStart_OwnDeepLink(t *testing.T) {
	b, api, _, mb := newTestBot(t)

	b.HandleUpdate(privateMsg(2, "/start 2"))

	if _, ok, _ := mb.Target(context.Background(), 2); ok {
		t.Error("opening your own link must not set a target")
	}
	msg, _ := api.lastTo(2)
	if msg.Text != textOwnLink {
		t.Errorf("got %q, want own-link notice", msg.Text)
	}
}

func TestAnonLink_ContainsDeepLink(t *testing.T) {
	b, api, _, _ := newTestBot(t)

	b.HandleUpdate(privateMsg(5, telegram.ButtonAnonLink))

	msg, _ := api.lastTo(5)
	if !strings.Contains(msg.Text, "https://t.me/anonbot?start=5") {
		t.Errorf("link message should embed the deep link, got %q", msg.Text)
	}
}

func TestAnonSend_QueuesAndConsumesLink(t *testing.T) {
	b, api, dir, mb := newTestBot(t)
	ctx := context.Background()

	b.HandleUpdate(privateMsg(2, "/start 99"))
	b.HandleUpdate(privateMsgID(2, 7, "hello there"))

	if _, ok, _ := mb.Target(ctx, 2); ok {
		t.Error("link target should be consumed by the first message")
	}
	msg, ok, err := mb.Pop(ctx, 99)
	if err != nil || !ok {
		t.Fatalf("Pop: ok=%v err=%v", ok, err)
	}
	if msg.SenderID != 2 || msg.Text != "hello there" {
		t.Errorf("queued message = %+v", msg)
	}

	if nudge, ok := api.lastTo(99); !ok || nudge.Text != textAnonNudge {
		t.Errorf("owner nudge = %+v", nudge)
	}
	if confirm, _ := api.lastTo(2); confirm.Text != textAnonSent {
		t.Errorf("sender confirmation = %q", confirm.Text)
	}

	dir.mu.Lock()
	defer dir.mu.Unlock()
	if len(dir.anon) != 1 || dir.anon[0].From != 2 || dir.anon[0].To != 99 {
		t.Errorf("anon record = %+v", dir.anon)
	}
}

func TestNewMsg_DeliversOldestAndRoutesReply(t *testing.T) {
	b, api, _, mb := newTestBot(t)
	ctx := context.Background()

	// Sender 2 drops a letter into owner 1's mailbox.
	b.HandleUpdate(privateMsg(2, "/start 1"))
	b.HandleUpdate(privateMsgID(2, 7, "secret hello"))

	b.HandleUpdate(privateMsg(1, "/newmsg"))

	var delivered sentMessage
	api.mu.Lock()
	for _, m := range api.sent {
		if m.ChatID == 1 && strings.Contains(m.Text, "secret hello") {
			delivered = m
		}
	}
	api.mu.Unlock()
	if delivered.ID == 0 {
		t.Fatal("queued message was not delivered to the owner")
	}

	sender, ok, err := mb.ReplyTarget(ctx, 1, delivered.ID)
	if err != nil || !ok || sender != 2 {
		t.Fatalf("reply target = %d,%v,%v, want 2,true,nil", sender, ok, err)
	}

	// Owner replies to the delivered message; the answer is copied to the
	// anonymous sender and the mapping is consumed.
	b.HandleUpdate(&telegram.Update{Message: &telegram.Message{
		MessageID:      50,
		From:           &telegram.User{ID: 1},
		Chat:           telegram.Chat{ID: 1, Type: "private"},
		Text:           "hi back",
		ReplyToMessage: &telegram.Message{MessageID: delivered.ID},
	}})

	copies := api.copies()
	if len(copies) != 1 || copies[0].To != 2 || copies[0].MessageID != 50 {
		t.Fatalf("reply copies = %+v", copies)
	}
	if _, ok, _ := mb.ReplyTarget(ctx, 1, delivered.ID); ok {
		t.Error("reply mapping should be consumed after one use")
	}
}

func TestNewMsg_EmptyMailbox(t *testing.T) {
	b, api, _, _ := newTestBot(t)

	b.HandleUpdate(privateMsg(1, "/newmsg"))

	if msg, _ := api.lastTo(1); msg.Text != textNoPending {
		t.Errorf("got %q, want empty-mailbox notice", msg.Text)
	}
}

func TestRandomChat_PairsTwoUsers(t *testing.T) {
	b, api, _, _ := newTestBot(t)

	b.HandleUpdate(privateMsg(1, telegram.ButtonRandomChat))
	if msg, _ := api.lastTo(1); msg.Text != textAskGender {
		t.Fatalf("got %q, want gender prompt", msg.Text)
	}

	b.HandleUpdate(callback(1, telegram.CallbackSelfMale))
	if msg, _ := api.lastTo(1); msg.Text != textAskTarget {
		t.Fatalf("got %q, want target prompt", msg.Text)
	}

	b.HandleUpdate(callback(1, telegram.CallbackTargetAny))
	if msg, _ := api.lastTo(1); msg.Text != textSearching {
		t.Fatalf("got %q, want searching notice", msg.Text)
	}
	if !b.engine.Searching(1) {
		t.Fatal("user 1 should be in the pool")
	}

	b.HandleUpdate(callback(2, telegram.CallbackSelfFemale))
	b.HandleUpdate(callback(2, telegram.CallbackTargetAny))

	for _, user := range []int64{1, 2} {
		if msg, _ := api.lastTo(user); msg.Text != textMatched {
			t.Errorf("user %d last message = %q, want matched notice", user, msg.Text)
		}
	}
}

func TestTargetCallback_WithoutGenderRestartsFlow(t *testing.T) {
	b, api, _, _ := newTestBot(t)

	b.HandleUpdate(callback(9, telegram.CallbackTargetAny))

	if msg, _ := api.lastTo(9); msg.Text != textAskGender {
		t.Errorf("got %q, want gender prompt", msg.Text)
	}
	if b.engine.Searching(9) {
		t.Error("search must not start without a gender")
	}
}

func TestRelay_CopiesToPartner(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	pairUsers(t, b, 1, 2)

	b.HandleUpdate(privateMsgID(1, 33, "hey stranger"))

	copies := api.copies()
	if len(copies) != 1 {
		t.Fatalf("copies = %+v, want exactly one", copies)
	}
	if copies[0].To != 2 || copies[0].FromChat != 1 || copies[0].MessageID != 33 {
		t.Errorf("copy = %+v, want message 33 from chat 1 to user 2", copies[0])
	}
}

func TestEndChat_NotifiesBothSides(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	pairUsers(t, b, 1, 2)

	b.HandleUpdate(privateMsg(1, telegram.ButtonEndChat))

	if _, ok := b.engine.PartnerOf(1); ok {
		t.Fatal("session should be gone")
	}
	if msg, _ := api.lastTo(1); msg.Text != textChatEnded {
		t.Errorf("ender got %q", msg.Text)
	}
	if msg, _ := api.lastTo(2); msg.Text != textPartnerLeft {
		t.Errorf("partner got %q", msg.Text)
	}
}

func TestEndChat_WithoutSession(t *testing.T) {
	b, api, _, _ := newTestBot(t)

	b.HandleUpdate(privateMsg(1, telegram.ButtonEndChat))

	if msg, _ := api.lastTo(1); msg.Text != textNotInChat {
		t.Errorf("got %q, want not-in-chat notice", msg.Text)
	}
}

func TestNext_WithoutProfilePromptsSetup(t *testing.T) {
	b, api, _, _ := newTestBot(t)

	b.HandleUpdate(privateMsg(1, telegram.ButtonNext))

	if msg, _ := api.lastTo(1); msg.Text != textAskGender {
		t.Errorf("got %q, want gender prompt", msg.Text)
	}
}

func TestNext_RequeuesWithStoredProfile(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	pairUsers(t, b, 1, 2)

	b.HandleUpdate(privateMsg(1, telegram.ButtonNext))

	if !b.engine.Searching(1) {
		t.Error("user 1 should be searching again")
	}
	if _, ok := b.engine.PartnerOf(2); ok {
		t.Error("user 2 should be unpaired, not re-queued")
	}
	if msg, _ := api.lastTo(2); msg.Text != textPartnerLeft {
		t.Errorf("partner got %q", msg.Text)
	}
}

func TestCancel_StopsSearch(t *testing.T) {
	b, api, _, _ := newTestBot(t)

	b.HandleUpdate(callback(1, telegram.CallbackSelfMale))
	b.HandleUpdate(callback(1, telegram.CallbackTargetAny))
	b.HandleUpdate(privateMsg(1, "/cancel"))

	if b.engine.Searching(1) {
		t.Error("search should be cancelled")
	}
	if msg, _ := api.lastTo(1); msg.Text != textSearchCancelled {
		t.Errorf("got %q, want cancel confirmation", msg.Text)
	}
}

func TestCancel_NothingActive(t *testing.T) {
	b, api, _, _ := newTestBot(t)

	b.HandleUpdate(privateMsg(1, "/cancel"))

	if msg, _ := api.lastTo(1); msg.Text != textNothingToCancel {
		t.Errorf("got %q, want nothing-to-cancel notice", msg.Text)
	}
}

func TestCancelSearchCallback(t *testing.T) {
	b, api, _, _ := newTestBot(t)

	b.HandleUpdate(callback(1, telegram.CallbackCancelSearch))
	if msg, _ := api.lastTo(1); msg.Text != textNotSearching {
		t.Fatalf("got %q, want not-searching notice", msg.Text)
	}

	b.HandleUpdate(callback(1, telegram.CallbackSelfMale))
	b.HandleUpdate(callback(1, telegram.CallbackTargetAny))
	b.HandleUpdate(callback(1, telegram.CallbackCancelSearch))
	if b.engine.Searching(1) {
		t.Error("search should be cancelled")
	}
}

func TestSpecialContact_FullFlow(t *testing.T) {
	b, api, dir, _ := newTestBot(t)
	dir.AddUser(context.Background(), 300, "bob", "Bob", "")

	b.HandleUpdate(privateMsg(5, telegram.ButtonSpecialContact))
	if msg, _ := api.lastTo(5); msg.Text != textContactAsk {
		t.Fatalf("got %q, want contact prompt", msg.Text)
	}

	b.HandleUpdate(privateMsg(5, "@bob"))
	if msg, _ := api.lastTo(5); msg.Text != textContactFound {
		t.Fatalf("got %q, want contact-found notice", msg.Text)
	}

	b.HandleUpdate(privateMsg(5, "you dropped your badge"))

	if msg, _ := api.lastTo(300); !strings.Contains(msg.Text, "you dropped your badge") {
		t.Errorf("recipient got %q", msg.Text)
	}
	if strings.Contains(mustLast(t, api, 300).Text, "5") {
		t.Error("delivered message must not reveal the sender's ID")
	}
	if msg, _ := api.lastTo(5); msg.Text != textContactDelivered {
		t.Errorf("sender got %q", msg.Text)
	}

	// The flow is done; the next free-text message falls through to the menu.
	b.HandleUpdate(privateMsg(5, "another message"))
	if msg, _ := api.lastTo(5); msg.Text != textMainMenuHint {
		t.Errorf("after flow, got %q, want menu hint", msg.Text)
	}
}

func mustLast(t *testing.T, api *fakeAPI, chatID int64) sentMessage {
	t.Helper()
	msg, ok := api.lastTo(chatID)
	if !ok {
		t.Fatalf("no messages sent to %d", chatID)
	}
	return msg
}

func TestSpecialContact_RejectsSelfAndUnknown(t *testing.T) {
	b, api, _, _ := newTestBot(t)

	b.HandleUpdate(privateMsg(5, telegram.ButtonSpecialContact))

	b.HandleUpdate(privateMsg(5, "5"))
	if msg, _ := api.lastTo(5); msg.Text != textContactSelf {
		t.Errorf("got %q, want self rejection", msg.Text)
	}

	b.HandleUpdate(privateMsg(5, "@nobody"))
	if msg, _ := api.lastTo(5); msg.Text != textContactUnknown {
		t.Errorf("got %q, want unknown rejection", msg.Text)
	}

	// Still on the target step; a valid /cancel backs out.
	b.HandleUpdate(privateMsg(5, "/cancel"))
	if _, ok := b.states.contactStep(5); ok {
		t.Error("cancel should clear the contact flow")
	}
}

func TestGroupMessage_RecordsGroup(t *testing.T) {
	b, api, dir, _ := newTestBot(t)

	b.HandleUpdate(&telegram.Update{Message: &telegram.Message{
		MessageID: 1,
		From:      &telegram.User{ID: 4},
		Chat:      telegram.Chat{ID: -100500, Type: "supergroup", Title: "some group"},
		Text:      "chatter",
	}})

	dir.mu.Lock()
	title, ok := dir.groups[-100500]
	linked := dir.links[[2]int64{4, -100500}]
	dir.mu.Unlock()
	if !ok || title != "some group" {
		t.Errorf("group not recorded: %q %v", title, ok)
	}
	if !linked {
		t.Error("sender should be linked to the group")
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.sent) != 0 {
		t.Errorf("group chatter should not trigger replies, sent %+v", api.sent)
	}
}

func TestFreeText_WithoutContextShowsMenu(t *testing.T) {
	b, api, _, _ := newTestBot(t)

	b.HandleUpdate(privateMsg(7, "what is this"))

	if msg, _ := api.lastTo(7); msg.Text != textMainMenuHint {
		t.Errorf("got %q, want menu hint", msg.Text)
	}
}
