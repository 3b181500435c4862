package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"prism-kanban/domain"
)

// Store is a mirror that can also read its rows back.
type Store interface {
	domain.Mirror
	domain.Reader
}

// Notifier publishes committed board changes.
type Notifier interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// entry guards one board together with its member set.
type entry struct {
	mu      sync.RWMutex
	board   *domain.Board
	members map[string]bool
}

// Catalog holds every board keyed by (creator, name) and checks login and
// membership before calling into a board.
type Catalog struct {
	store    Store
	notifier Notifier
	now      func() time.Time

	mu     sync.RWMutex
	boards map[domain.BoardKey]*entry
}

// New returns an empty catalog. notifier may be nil.
func New(store Store, notifier Notifier) *Catalog {
	return &Catalog{
		store:    store,
		notifier: notifier,
		now:      time.Now,
		boards:   map[domain.BoardKey]*entry{},
	}
}

// LoadData replaces the catalog's contents with the boards held by the store.
// Boards that fail to load are skipped and reported together.
func (c *Catalog) LoadData(ctx context.Context) error {
	rows, err := c.store.Boards(ctx)
	if err != nil {
		log.WithError(err).Error("failed to load boards")
		return fmt.Errorf("load boards: %w", err)
	}
	loaded := make(map[domain.BoardKey]*entry, len(rows))
	var errs []error
	for _, row := range rows {
		key := row.Board()
		if _, dup := loaded[key]; dup {
			log.WithField("board", key.String()).Error("duplicate board row")
			errs = append(errs, fmt.Errorf("%w: %s", ErrBoardExists, key))
			continue
		}
		e, err := c.loadBoard(ctx, row)
		if err != nil {
			log.WithError(err).WithField("board", key.String()).Error("failed to load board")
			errs = append(errs, err)
			continue
		}
		loaded[key] = e
	}

	c.mu.Lock()
	c.boards = loaded
	c.mu.Unlock()
	log.WithFields(log.Fields{"boards": len(loaded), "failed": len(errs)}).Info("catalog loaded")
	return errors.Join(errs...)
}

func (c *Catalog) loadBoard(ctx context.Context, row domain.BoardEntity) (*entry, error) {
	key := row.Board()
	cols, err := c.store.Columns(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load columns of %s: %w", key, err)
	}
	tasks, err := c.store.Tasks(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load tasks of %s: %w", key, err)
	}
	members, err := c.store.Members(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load members of %s: %w", key, err)
	}
	b, err := domain.LoadBoard(row, cols, tasks, c.store)
	if err != nil {
		return nil, err
	}
	if n, err := b.RepairOrdinals(ctx); err != nil {
		log.WithError(err).WithField("board", key.String()).Warn("failed to write back column ordinals")
	} else if n > 0 {
		log.WithFields(log.Fields{"board": key.String(), "columns": n}).Debug("column ordinals renumbered")
	}
	e := &entry{board: b, members: make(map[string]bool, len(members))}
	for _, m := range members {
		e.members[m.Email] = true
	}
	return e, nil
}

// AddBoard creates a board owned by the caller, who becomes its first member.
func (c *Catalog) AddBoard(ctx context.Context, name string) (domain.BoardKey, error) {
	s, err := c.caller(ctx)
	if err != nil {
		return domain.BoardKey{}, err
	}
	key := domain.BoardKey{Creator: s.Email, Name: name}
	fields := log.Fields{"user": s.Email, "board": key.String()}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.boards[key]; ok {
		err := fmt.Errorf("%w: %s", ErrBoardExists, key)
		logOutcome("add board", fields, err)
		return domain.BoardKey{}, err
	}
	b, err := domain.NewBoard(s.Email, name, c.store)
	if err != nil {
		logOutcome("add board", fields, err)
		return domain.BoardKey{}, err
	}
	if err := b.Persist(ctx); err != nil {
		if errors.Is(err, domain.ErrPersistenceConflict) {
			err = fmt.Errorf("%w: %s is already stored, reload data first: %w", ErrBoardExists, key, err)
		}
		logOutcome("add board", fields, err)
		return domain.BoardKey{}, err
	}
	if err := c.store.Insert(ctx, memberRow(key, s.Email)); err != nil {
		if derr := b.Delete(ctx); derr != nil {
			log.WithFields(fields).WithError(derr).Error("failed to roll back board rows")
		}
		logOutcome("add board", fields, err)
		return domain.BoardKey{}, err
	}
	c.boards[key] = &entry{board: b, members: map[string]bool{s.Email: true}}
	logOutcome("add board", fields, nil)
	c.publish(ctx, s, key, "board.added", nil)
	return key, nil
}

// JoinBoard makes the caller a member of an existing board.
func (c *Catalog) JoinBoard(ctx context.Context, creator, name string) error {
	s, err := c.caller(ctx)
	if err != nil {
		return err
	}
	key := domain.BoardKey{Creator: creator, Name: name}
	fields := log.Fields{"user": s.Email, "board": key.String()}
	e, err := c.lookup(key)
	if err != nil {
		logOutcome("join board", fields, err)
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.members[s.Email] {
		err := fmt.Errorf("%w: %s on %s", ErrAlreadyMember, s.Email, key)
		logOutcome("join board", fields, err)
		return err
	}
	if err := c.store.Insert(ctx, memberRow(key, s.Email)); err != nil {
		logOutcome("join board", fields, err)
		return err
	}
	e.members[s.Email] = true
	logOutcome("join board", fields, nil)
	c.publish(ctx, s, key, "board.joined", nil)
	return nil
}

// RemoveBoard deletes a board and every row it owns. Only the creator may
// remove a board.
func (c *Catalog) RemoveBoard(ctx context.Context, creator, name string) error {
	s, err := c.caller(ctx)
	if err != nil {
		return err
	}
	key := domain.BoardKey{Creator: creator, Name: name}
	fields := log.Fields{"user": s.Email, "board": key.String()}
	if s.Email != creator {
		err := fmt.Errorf("%w: %s cannot remove %s", ErrNotCreator, s.Email, key)
		logOutcome("remove board", fields, err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.boards[key]
	if !ok {
		err := fmt.Errorf("%w: %s", ErrBoardNotFound, key)
		logOutcome("remove board", fields, err)
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	var removed []string
	for email := range e.members {
		if err := c.store.Delete(ctx, domain.TableMembers, domain.MemberEntityKey(key, email)); err != nil {
			c.restoreMembers(ctx, key, removed)
			logOutcome("remove board", fields, err)
			return err
		}
		removed = append(removed, email)
	}
	if err := e.board.Delete(ctx); err != nil {
		c.restoreMembers(ctx, key, removed)
		logOutcome("remove board", fields, err)
		return err
	}
	e.members = map[string]bool{}
	delete(c.boards, key)
	logOutcome("remove board", fields, nil)
	c.publish(ctx, s, key, "board.removed", nil)
	return nil
}

// UserBoards returns the boards the caller is a member of.
func (c *Catalog) UserBoards(ctx context.Context) ([]domain.BoardKey, error) {
	s, err := c.caller(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.BoardKey
	for key, e := range c.snapshot() {
		e.mu.RLock()
		member := e.members[s.Email]
		e.mu.RUnlock()
		if member {
			out = append(out, key)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// InProgressTasks returns the caller's tasks that sit in an in-progress column
// of any board the caller is a member of.
func (c *Catalog) InProgressTasks(ctx context.Context) ([]domain.TaskEntity, error) {
	s, err := c.caller(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.TaskEntity
	for _, e := range c.snapshot() {
		e.mu.RLock()
		if e.members[s.Email] {
			for _, t := range e.board.InProgressTasks() {
				if t.Assignee() == s.Email {
					out = append(out, t.Entity())
				}
			}
		}
		e.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PartitionKey != out[j].PartitionKey {
			return out[i].PartitionKey < out[j].PartitionKey
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Members returns the member e-mails of a board the caller belongs to.
func (c *Catalog) Members(ctx context.Context, creator, name string) ([]string, error) {
	var out []string
	err := c.read(ctx, "members", creator, name, nil, func(_ Session, e *entry) error {
		for email := range e.members {
			out = append(out, email)
		}
		sort.Strings(out)
		return nil
	})
	return out, err
}

func (c *Catalog) caller(ctx context.Context) (Session, error) {
	s, ok := SessionFrom(ctx)
	if !ok {
		log.Warn("operation attempted without a session")
		return Session{}, ErrNotLoggedIn
	}
	return s, nil
}

func (c *Catalog) lookup(key domain.BoardKey) (*entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.boards[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBoardNotFound, key)
	}
	return e, nil
}

func (c *Catalog) snapshot() map[domain.BoardKey]*entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[domain.BoardKey]*entry, len(c.boards))
	for k, e := range c.boards {
		out[k] = e
	}
	return out
}

// read runs fn under the board's read lock once the caller's membership is
// confirmed.
func (c *Catalog) read(ctx context.Context, op, creator, name string, fields log.Fields, fn func(Session, *entry) error) error {
	return c.access(ctx, op, creator, name, fields, false, fn)
}

// write runs fn under the board's write lock once the caller's membership is
// confirmed, and logs the outcome.
func (c *Catalog) write(ctx context.Context, op, creator, name string, fields log.Fields, fn func(Session, *entry) error) error {
	return c.access(ctx, op, creator, name, fields, true, fn)
}

func (c *Catalog) access(ctx context.Context, op, creator, name string, fields log.Fields, exclusive bool, fn func(Session, *entry) error) error {
	s, err := c.caller(ctx)
	if err != nil {
		return err
	}
	key := domain.BoardKey{Creator: creator, Name: name}
	all := log.Fields{"user": s.Email, "board": key.String()}
	for k, v := range fields {
		all[k] = v
	}
	e, err := c.lookup(key)
	if err != nil {
		logOutcome(op, all, err)
		return err
	}
	if exclusive {
		e.mu.Lock()
		defer e.mu.Unlock()
	} else {
		e.mu.RLock()
		defer e.mu.RUnlock()
	}
	if !e.members[s.Email] {
		err := fmt.Errorf("%w: %s on %s", ErrNotMember, s.Email, key)
		logOutcome(op, all, err)
		return err
	}
	err = fn(s, e)
	if exclusive || err != nil {
		logOutcome(op, all, err)
	}
	return err
}

func (c *Catalog) publish(ctx context.Context, s Session, key domain.BoardKey, typ string, data map[string]any) {
	if c.notifier == nil {
		return
	}
	ev := domain.Event{
		ID:      uuid.NewString(),
		Type:    typ,
		Board:   key.String(),
		Actor:   s.Email,
		Session: s.ID,
		Data:    data,
		Time:    c.now().UnixMilli(),
	}
	if err := c.notifier.Publish(ctx, ev); err != nil {
		log.WithError(err).WithFields(log.Fields{"event": typ, "board": ev.Board}).Warn("failed to publish board event")
	}
}

// restoreMembers re-inserts member rows deleted by a failed RemoveBoard.
func (c *Catalog) restoreMembers(ctx context.Context, key domain.BoardKey, emails []string) {
	for _, email := range emails {
		if err := c.store.Insert(ctx, memberRow(key, email)); err != nil {
			log.WithError(err).WithFields(log.Fields{"board": key.String(), "member": email}).Error("failed to restore member row")
		}
	}
}

func memberRow(key domain.BoardKey, email string) domain.MemberEntity {
	return domain.MemberEntity{Entity: domain.MemberEntityKey(key, email), Email: email}
}

// logOutcome logs at Info on success, Error on persistence failures and Warn on
// every other rejection.
func logOutcome(op string, fields log.Fields, err error) {
	l := log.WithFields(fields).WithField("op", op)
	switch {
	case err == nil:
		l.Info("operation succeeded")
	case errors.Is(err, domain.ErrPersistenceUnavailable), errors.Is(err, domain.ErrPersistenceConflict):
		l.WithError(err).Error("operation failed to persist")
	default:
		l.WithError(err).Warn("operation rejected")
	}
}
