package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/recaplab/recap/internal/assistant"
	"github.com/recaplab/recap/internal/crm"
)

// mockStore implements RecordStore.
type mockStore struct {
	mu sync.Mutex

	pages    []crm.QueryPage
	queryErr error
	moreErr  error

	queries  []string
	locators []string

	objectNames []string
	createCalls [][]map[string]interface{}
	updateCalls [][]map[string]interface{}

	createResults []crm.SaveResult // nil -> all succeed
	updateResults []crm.SaveResult
	createErr     error
	updateErr     error

	pageCursor int
}

func (m *mockStore) Query(ctx context.Context, q string) (crm.QueryPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	if m.queryErr != nil {
		return crm.QueryPage{}, m.queryErr
	}
	return m.nextPage()
}

func (m *mockStore) QueryMore(ctx context.Context, locator string) (crm.QueryPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locators = append(m.locators, locator)
	if m.moreErr != nil {
		return crm.QueryPage{}, m.moreErr
	}
	return m.nextPage()
}

func (m *mockStore) nextPage() (crm.QueryPage, error) {
	if m.pageCursor >= len(m.pages) {
		return crm.QueryPage{Done: true}, nil
	}
	page := m.pages[m.pageCursor]
	m.pageCursor++
	return page, nil
}

func (m *mockStore) CreateAll(ctx context.Context, objectName string, records []map[string]interface{}) ([]crm.SaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objectNames = append(m.objectNames, objectName)
	m.createCalls = append(m.createCalls, records)
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.createResults != nil {
		return m.createResults, nil
	}
	return allSucceeded(len(records)), nil
}

func (m *mockStore) UpdateAll(ctx context.Context, objectName string, records []map[string]interface{}) ([]crm.SaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls = append(m.updateCalls, records)
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if m.updateResults != nil {
		return m.updateResults, nil
	}
	return allSucceeded(len(records)), nil
}

func allSucceeded(n int) []crm.SaveResult {
	results := make([]crm.SaveResult, n)
	for i := range results {
		results[i] = crm.SaveResult{ID: fmt.Sprintf("rec-%03d", i), Success: true}
	}
	return results
}

// mockConversation implements ConversationService. Behavior is driven
// by the posted message content: failOn substrings make the run fail,
// argsFor picks the structured-call arguments.
type mockConversation struct {
	mu sync.Mutex

	nextConv     int
	deletedConvs []string
	uploads      []string
	deletedFiles []string
	messages     map[string]string // conversation -> content

	failOn  []string
	argsFor func(content string) string
	inUse   int
	peakUse int
}

func newMockConversation() *mockConversation {
	return &mockConversation{messages: make(map[string]string)}
}

func (m *mockConversation) CreateConversation(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextConv++
	m.inUse++
	if m.inUse > m.peakUse {
		m.peakUse = m.inUse
	}
	return fmt.Sprintf("conv-%d", m.nextConv), nil
}

func (m *mockConversation) DeleteConversation(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedConvs = append(m.deletedConvs, conversationID)
	m.inUse--
	return nil
}

func (m *mockConversation) PostMessage(ctx context.Context, conversationID, content, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[conversationID] = content
	return nil
}

func (m *mockConversation) RunToCompletion(ctx context.Context, conversationID, profileID string, fn assistant.ForcedFunction) (json.RawMessage, error) {
	m.mu.Lock()
	content := m.messages[conversationID]
	argsFor := m.argsFor
	failOn := m.failOn
	m.mu.Unlock()

	for _, marker := range failOn {
		if marker != "" && strings.Contains(content, marker) {
			return nil, fmt.Errorf("run ended failed: simulated failure for %q", marker)
		}
	}
	if argsFor != nil {
		return json.RawMessage(argsFor(content)), nil
	}
	return json.RawMessage(`{"summary": "generated"}`), nil
}

func (m *mockConversation) UploadTransientFile(ctx context.Context, filename string, content []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("file-%d", len(m.uploads)+1)
	m.uploads = append(m.uploads, id)
	return id, nil
}

func (m *mockConversation) DeleteTransientFile(ctx context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedFiles = append(m.deletedFiles, fileID)
	return nil
}

// mockNotifier implements Notifier.
type mockNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	err   error
}

type notifyCall struct {
	cb            Callback
	processResult string
	message       string
}

func (m *mockNotifier) Notify(ctx context.Context, cb Callback, processResult, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, notifyCall{cb: cb, processResult: processResult, message: message})
	return m.err
}

// mockJournal implements RunJournal.
type mockJournal struct {
	mu         sync.Mutex
	running    []string
	finished   []string
	outcomes   map[string]bool
	lastCounts [3]int
}

func newMockJournal() *mockJournal {
	return &mockJournal{outcomes: make(map[string]bool)}
}

func (m *mockJournal) MarkRunning(ctx context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = append(m.running, runID)
	return nil
}

func (m *mockJournal) MarkFinished(ctx context.Context, runID string, succeeded bool, message string, monthly, quarterly, generationErrors int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, runID)
	m.outcomes[runID] = succeeded
	m.lastCounts = [3]int{monthly, quarterly, generationErrors}
	return nil
}
