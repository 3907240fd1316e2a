package receipt

import "sync"

// Drafts holds the add-expense form of each user.
type Drafts struct {
	mu       sync.Mutex
	forms    map[string]*Form
	maxBytes int
}

func NewDrafts(maxImageBytes int) *Drafts {
	return &Drafts{forms: make(map[string]*Form), maxBytes: maxImageBytes}
}

// Get returns the user's draft, opening a new one if needed.
func (d *Drafts) Get(userID string) *Form {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.forms[userID]
	if !ok || f.Discarded() {
		f = NewForm(d.maxBytes)
		d.forms[userID] = f
	}
	return f
}

// Discard closes the user's draft. The next Get starts fresh.
func (d *Drafts) Discard(userID string) {
	d.mu.Lock()
	f, ok := d.forms[userID]
	delete(d.forms, userID)
	d.mu.Unlock()
	if ok {
		f.Discard()
	}
}

// DiscardForm closes f and forgets it if it is still the user's draft. A
// newer draft opened in the meantime is left alone.
func (d *Drafts) DiscardForm(userID string, f *Form) {
	d.mu.Lock()
	if d.forms[userID] == f {
		delete(d.forms, userID)
	}
	d.mu.Unlock()
	f.Discard()
}

func (d *Drafts) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.forms)
}
