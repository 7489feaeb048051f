package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mandi/pkg/ai"
	"mandi/pkg/domain"
)

// fakeSnapshot keeps records in memory and logs the order of operations so
// tests can assert the load-before-save gate.
type fakeSnapshot struct {
	mu       sync.Mutex
	ops      []string
	listings []domain.Listing
	sessions []domain.ChatSession
	role     domain.Role
	saveErr  error
}

func (f *fakeSnapshot) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op)
}

func (f *fakeSnapshot) opLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ops))
	copy(out, f.ops)
	return out
}

func (f *fakeSnapshot) LoadListings() ([]domain.Listing, error) {
	f.record("load:listings")
	return append([]domain.Listing(nil), f.listings...), nil
}

func (f *fakeSnapshot) SaveListings(listings []domain.Listing) error {
	f.record("save:listings")
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listings = append([]domain.Listing(nil), listings...)
	return nil
}

func (f *fakeSnapshot) LoadSessions() ([]domain.ChatSession, error) {
	f.record("load:sessions")
	return append([]domain.ChatSession(nil), f.sessions...), nil
}

func (f *fakeSnapshot) SaveSessions(sessions []domain.ChatSession) error {
	f.record("save:sessions")
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append([]domain.ChatSession(nil), sessions...)
	return nil
}

func (f *fakeSnapshot) LoadRole() (domain.Role, error) {
	f.record("load:role")
	if f.role == "" {
		return domain.DefaultRole, nil
	}
	return f.role, nil
}

func (f *fakeSnapshot) SaveRole(role domain.Role) error {
	f.record("save:role")
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.role = role
	return nil
}

type stubTranslator struct {
	err  error
	gate chan struct{}
}

func (s *stubTranslator) TranslateText(_ context.Context, text string, target domain.Language) (string, error) {
	if s.gate != nil {
		<-s.gate
	}
	if s.err != nil {
		return "", s.err
	}
	return "[" + string(target) + "] " + text, nil
}

type stubExtractor struct {
	draft *ai.ListingDraft
	err   error
}

func (s *stubExtractor) ExtractListing(context.Context, string) (*ai.ListingDraft, error) {
	return s.draft, s.err
}

func newTestApp(t *testing.T, snap *fakeSnapshot) *App {
	t.Helper()
	engine, err := New(Config{Snapshot: snap, Translator: &stubTranslator{}})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return engine
}

func testListing(id, item string, category domain.Category) domain.Listing {
	now := time.Now().UTC()
	return domain.Listing{
		ID:       id,
		Item:     item,
		Quantity: "10kg",
		Price:    20,
		Currency: "INR",
		Description: domain.TranslationPair{
			Original:   "desc " + item,
			Translated: "translated " + item,
			Language:   domain.LanguageHindi,
		},
		Category:  category,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    domain.StatusActive,
	}
}

func TestNoSaveBeforeInitialLoad(t *testing.T) {
	snap := &fakeSnapshot{}
	engine := newTestApp(t, snap)
	if err := engine.AddListing(testListing("l1", "Tomato", domain.CategoryVegetables)); err != nil {
		t.Fatalf("add listing: %v", err)
	}

	loads := map[string]bool{}
	for _, op := range snap.opLog() {
		if strings.HasPrefix(op, "save:") && len(loads) < 3 {
			t.Fatalf("save issued before all loads completed: %v", snap.opLog())
		}
		if strings.HasPrefix(op, "load:") {
			loads[op] = true
		}
	}
	if len(loads) != 3 {
		t.Fatalf("expected three load operations, saw %v", snap.opLog())
	}
}

func TestAddListingPrependsNewestFirst(t *testing.T) {
	engine := newTestApp(t, &fakeSnapshot{})
	engine.AddListing(testListing("l1", "Onion", domain.CategoryVegetables))
	engine.AddListing(testListing("l2", "Rice", domain.CategoryGrains))
	listings := engine.Listings()
	if len(listings) != 2 || listings[0].ID != "l2" || listings[1].ID != "l1" {
		t.Fatalf("expected newest first, got %+v", listings)
	}
}

func TestAddListingRejectsDuplicateAndInvalid(t *testing.T) {
	engine := newTestApp(t, &fakeSnapshot{})
	if err := engine.AddListing(testListing("l1", "Onion", domain.CategoryVegetables)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := engine.AddListing(testListing("l1", "Onion", domain.CategoryVegetables)); !errors.Is(err, ErrListingExists) {
		t.Fatalf("duplicate id: got %v, want ErrListingExists", err)
	}
	if err := engine.AddListing(domain.Listing{}); !errors.Is(err, ErrInvalidListing) {
		t.Fatalf("empty id: got %v, want ErrInvalidListing", err)
	}
	bad := testListing("l3", "Onion", domain.CategoryVegetables)
	bad.Price = -1
	if err := engine.AddListing(bad); !errors.Is(err, ErrInvalidListing) {
		t.Fatalf("negative price: got %v, want ErrInvalidListing", err)
	}
}

func TestSearchListings(t *testing.T) {
	engine := newTestApp(t, &fakeSnapshot{})
	engine.AddListing(testListing("l1", "Tomato", domain.CategoryVegetables))
	engine.AddListing(testListing("l2", "Apple", domain.CategoryFruits))
	tomatoHindi := testListing("l3", "Sabzi", domain.CategoryVegetables)
	tomatoHindi.Description.Translated = "Fresh Tomatoes from the farm"
	engine.AddListing(tomatoHindi)

	got := engine.SearchListings("tomato", string(domain.CategoryVegetables))
	if len(got) != 2 || got[0].ID != "l3" || got[1].ID != "l1" {
		t.Fatalf("tomato/Vegetables = %+v", got)
	}
	if got := engine.SearchListings("TOMATO", string(domain.CategoryFruits)); len(got) != 0 {
		t.Fatalf("wrong category should not match, got %+v", got)
	}
	all := engine.SearchListings("", domain.CategoryAll)
	if len(all) != 3 || all[0].ID != "l3" || all[2].ID != "l1" {
		t.Fatalf("empty query with All must return full store in order, got %+v", all)
	}
}

func TestStartOrResumeChatIsIdempotent(t *testing.T) {
	engine := newTestApp(t, &fakeSnapshot{})
	engine.AddListing(testListing("l1", "Tomato", domain.CategoryVegetables))

	first, err := engine.StartOrResumeChat("l1", "vendor-1", "buyer-1")
	if err != nil {
		t.Fatalf("start chat: %v", err)
	}
	second, err := engine.StartOrResumeChat("l1", "vendor-1", "buyer-1")
	if err != nil {
		t.Fatalf("resume chat: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("session ids differ: %q vs %q", first.ID, second.ID)
	}
	if n := len(engine.Sessions()); n != 1 {
		t.Fatalf("directory holds %d sessions for one listing", n)
	}
}

func TestStartOrResumeChatRequiresKnownListing(t *testing.T) {
	engine := newTestApp(t, &fakeSnapshot{})
	if _, err := engine.StartOrResumeChat("ghost", "v", "b"); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("got %v, want ErrListingNotFound", err)
	}
}

func TestMessagesAreAppendOnlyAndOrdered(t *testing.T) {
	engine := newTestApp(t, &fakeSnapshot{})
	engine.AddListing(testListing("l1", "Tomato", domain.CategoryVegetables))
	session, _ := engine.StartOrResumeChat("l1", "v", "b")

	ctx := context.Background()
	texts := []string{"hello", "price?", "deal"}
	prev := 0
	for _, text := range texts {
		if _, err := engine.SendMessage(ctx, session.ID, domain.RoleBuyer, text); err != nil {
			t.Fatalf("send %q: %v", text, err)
		}
		got, _ := engine.SessionByID(session.ID)
		if len(got.Messages) <= prev {
			t.Fatalf("message count did not grow: %d -> %d", prev, len(got.Messages))
		}
		prev = len(got.Messages)
	}
	got, _ := engine.SessionByID(session.ID)
	for i, text := range texts {
		if got.Messages[i].Text.Original != text {
			t.Fatalf("message %d out of order: %q", i, got.Messages[i].Text.Original)
		}
	}
}

func TestSendMessageTagsSenderTongueAndTranslates(t *testing.T) {
	engine := newTestApp(t, &fakeSnapshot{})
	engine.AddListing(testListing("l1", "Tomato", domain.CategoryVegetables))
	session, _ := engine.StartOrResumeChat("l1", "v", "b")

	msg, err := engine.SendMessage(context.Background(), session.ID, domain.RoleBuyer, "how much?")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Text.Language != domain.LanguageEnglish {
		t.Fatalf("buyer message tagged %q, want en", msg.Text.Language)
	}
	// Buyer messages translate into the vendor tongue.
	if msg.Text.Translated != "[hi] how much?" {
		t.Fatalf("unexpected translation: %q", msg.Text.Translated)
	}
}

func TestSendMessageFallsBackOnTranslationFailure(t *testing.T) {
	snap := &fakeSnapshot{}
	engine, err := New(Config{Snapshot: snap, Translator: &stubTranslator{err: errors.New("upstream down")}})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	engine.AddListing(testListing("l1", "Tomato", domain.CategoryVegetables))
	session, _ := engine.StartOrResumeChat("l1", "v", "b")

	msg, err := engine.SendMessage(context.Background(), session.ID, domain.RoleVendor, "नमस्ते")
	if err != nil {
		t.Fatalf("send must not fail on translation error: %v", err)
	}
	if msg.Text.Translated != "नमस्ते" {
		t.Fatalf("expected fallback to original text, got %q", msg.Text.Translated)
	}
	got, _ := engine.SessionByID(session.ID)
	if len(got.Messages) != 1 {
		t.Fatalf("message was dropped on translation failure")
	}
}

func TestSendMessageRefusesSecondInFlightSubmission(t *testing.T) {
	gate := make(chan struct{})
	snap := &fakeSnapshot{}
	engine, err := New(Config{Snapshot: snap, Translator: &stubTranslator{gate: gate}})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	engine.AddListing(testListing("l1", "Tomato", domain.CategoryVegetables))
	session, _ := engine.StartOrResumeChat("l1", "v", "b")

	firstDone := make(chan error, 1)
	go func() {
		_, err := engine.SendMessage(context.Background(), session.ID, domain.RoleBuyer, "first")
		firstDone <- err
	}()

	// Wait for the first send to take the busy latch.
	deadline := time.After(2 * time.Second)
	for {
		engine.mu.RLock()
		busy := engine.busy[session.ID]
		engine.mu.RUnlock()
		if busy {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("first send never became busy")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if _, err := engine.SendMessage(context.Background(), session.ID, domain.RoleBuyer, "second"); !errors.Is(err, ErrTranslationBusy) {
		t.Fatalf("got %v, want ErrTranslationBusy", err)
	}
	close(gate)
	if err := <-firstDone; err != nil {
		t.Fatalf("first send: %v", err)
	}
	if _, err := engine.SendMessage(context.Background(), session.ID, domain.RoleBuyer, "third"); err != nil {
		t.Fatalf("send after latch release: %v", err)
	}
}

func TestMarkListingSoldIsTerminal(t *testing.T) {
	engine := newTestApp(t, &fakeSnapshot{})
	engine.AddListing(testListing("l1", "Tomato", domain.CategoryVegetables))

	sold, err := engine.MarkListingSold("l1")
	if err != nil || sold.Status != domain.StatusSold {
		t.Fatalf("mark sold: %+v err %v", sold, err)
	}
	again, err := engine.MarkListingSold("l1")
	if err != nil || again.Status != domain.StatusSold {
		t.Fatalf("second mark sold must be a no-op: %+v err %v", again, err)
	}
	if _, err := engine.MarkListingSold("ghost"); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("got %v, want ErrListingNotFound", err)
	}
}

func TestSetRoleValidatesAndPersists(t *testing.T) {
	snap := &fakeSnapshot{}
	engine := newTestApp(t, snap)
	if engine.Role() != domain.DefaultRole {
		t.Fatalf("fresh engine role = %q", engine.Role())
	}
	if err := engine.SetRole(domain.RoleBuyer); err != nil {
		t.Fatalf("set role: %v", err)
	}
	if err := engine.SetRole(domain.Role("admin")); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("got %v, want ErrInvalidRole", err)
	}
	if snap.role != domain.RoleBuyer {
		t.Fatalf("role not persisted: %q", snap.role)
	}
}

func TestStateSurvivesReload(t *testing.T) {
	snap := &fakeSnapshot{}
	engine := newTestApp(t, snap)
	engine.AddListing(testListing("l1", "Tomato", domain.CategoryVegetables))
	session, _ := engine.StartOrResumeChat("l1", "v", "b")
	engine.SendMessage(context.Background(), session.ID, domain.RoleBuyer, "hello")
	engine.SetRole(domain.RoleBuyer)

	reloaded := newTestApp(t, snap)
	if len(reloaded.Listings()) != 1 {
		t.Fatalf("listings lost on reload")
	}
	got, ok := reloaded.SessionByID(session.ID)
	if !ok || len(got.Messages) != 1 {
		t.Fatalf("session log lost on reload: %+v", got)
	}
	if reloaded.Role() != domain.RoleBuyer {
		t.Fatalf("role lost on reload: %q", reloaded.Role())
	}
	// Resuming after reload still maps to the same session.
	resumed, err := reloaded.StartOrResumeChat("l1", "v", "b")
	if err != nil || resumed.ID != session.ID {
		t.Fatalf("resume after reload: %+v err %v", resumed, err)
	}
}

func TestPersistenceFailuresAreSwallowed(t *testing.T) {
	snap := &fakeSnapshot{saveErr: errors.New("disk full")}
	engine := newTestApp(t, snap)
	if err := engine.AddListing(testListing("l1", "Tomato", domain.CategoryVegetables)); err != nil {
		t.Fatalf("add listing must not surface persistence errors: %v", err)
	}
	if len(engine.Listings()) != 1 {
		t.Fatalf("in-memory state must stay authoritative")
	}
}

func TestVendorToBuyerScenario(t *testing.T) {
	snap := &fakeSnapshot{}
	extractor := &stubExtractor{draft: &ai.ListingDraft{
		Item:        "Tomato",
		Quantity:    "50kg",
		Price:       30,
		Description: "Fresh tomatoes",
		Category:    domain.CategoryVegetables,
	}}
	engine, err := New(Config{Snapshot: snap, Translator: &stubTranslator{}, Extractor: extractor})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	draft, ok := engine.ComposeDraft(context.Background(), "50kg tomatoes, 30 rupees", domain.LanguageHindi)
	if !ok {
		t.Fatalf("expected a draft")
	}
	if draft.Item != "Tomato" || draft.Quantity != "50kg" || draft.Price != 30 || draft.Category != domain.CategoryVegetables {
		t.Fatalf("unexpected draft: %+v", draft)
	}
	if draft.Description.Language != domain.LanguageHindi {
		t.Fatalf("draft description language = %q, want hi", draft.Description.Language)
	}

	listing, err := engine.ConfirmDraft(draft)
	if err != nil {
		t.Fatalf("confirm draft: %v", err)
	}
	if listing.ID == "" || listing.Status != domain.StatusActive {
		t.Fatalf("confirmed listing: %+v", listing)
	}

	found := engine.SearchListings("tomato", domain.CategoryAll)
	if len(found) != 1 || found[0].ID != listing.ID {
		t.Fatalf("buyer search missed the listing: %+v", found)
	}
	primary := domain.ListingPrimary(found[0].Description, domain.RoleBuyer)
	if primary != found[0].Description.Translated {
		t.Fatalf("buyer primary text = %q, want translated half", primary)
	}
}

func TestComposeDraftDegradesGracefully(t *testing.T) {
	snap := &fakeSnapshot{}
	engine, err := New(Config{
		Snapshot:   snap,
		Translator: &stubTranslator{err: errors.New("down")},
		Extractor:  &stubExtractor{draft: nil},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	// Nil extraction leaves the flow unconfirmed, no error, no crash.
	if _, ok := engine.ComposeDraft(context.Background(), "random chatter", domain.LanguageHindi); ok {
		t.Fatalf("expected no draft for nil extraction")
	}
	if _, ok := engine.ComposeDraft(context.Background(), "  ", domain.LanguageHindi); ok {
		t.Fatalf("expected no draft for blank text")
	}
}
