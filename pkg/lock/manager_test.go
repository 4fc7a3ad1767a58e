package lock

import (
	"errors"
	"testing"
	"time"

	"github.com/linpingchuan/ledgerdb/internal/dberrors"
	"github.com/linpingchuan/ledgerdb/pkg/ids"
)

func newPID(table ids.TableID, page ids.PageNumber) ids.PageID {
	return ids.NewPageID(table, page)
}

func TestAcquireShared_MultipleReaders(t *testing.T) {
	m := NewManager()
	pid := newPID(1, 1)
	t1, t2 := ids.NewTxID(), ids.NewTxID()

	if err := m.AcquireShared(t1, pid); err != nil {
		t.Fatalf("t1 shared: %v", err)
	}
	if err := m.AcquireShared(t2, pid); err != nil {
		t.Fatalf("t2 shared: %v", err)
	}

	if mode, ok := m.HoldsLock(t1, pid); !ok || mode != Shared {
		t.Errorf("t1 should hold Shared, got %v %v", mode, ok)
	}
	if mode, ok := m.HoldsLock(t2, pid); !ok || mode != Shared {
		t.Errorf("t2 should hold Shared, got %v %v", mode, ok)
	}
}

func TestAcquireExclusive_BlocksOtherReaders(t *testing.T) {
	m := NewManager()
	pid := newPID(1, 1)
	writer, reader := ids.NewTxID(), ids.NewTxID()

	if err := m.AcquireExclusive(writer, pid); err != nil {
		t.Fatalf("writer exclusive: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- m.AcquireShared(reader, pid) }()

	select {
	case <-done:
		t.Fatal("reader should not have been granted while writer holds exclusive")
	case <-time.After(50 * time.Millisecond):
	}

	m.Release(writer, pid)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("reader acquire after release: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("reader was never woken after writer released")
	}
}

func TestUpgrade_SoleSharedHolderCanUpgrade(t *testing.T) {
	m := NewManager()
	pid := newPID(1, 1)
	tid := ids.NewTxID()

	if err := m.AcquireShared(tid, pid); err != nil {
		t.Fatalf("shared: %v", err)
	}
	if err := m.AcquireExclusive(tid, pid); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if mode, _ := m.HoldsLock(tid, pid); mode != Exclusive {
		t.Errorf("expected Exclusive after upgrade, got %v", mode)
	}
}

func TestUpgrade_BlockedWhileOtherSharedHolderPresent(t *testing.T) {
	m := NewManager()
	pid := newPID(1, 1)
	t1, t2 := ids.NewTxID(), ids.NewTxID()

	if err := m.AcquireShared(t1, pid); err != nil {
		t.Fatalf("t1 shared: %v", err)
	}
	if err := m.AcquireShared(t2, pid); err != nil {
		t.Fatalf("t2 shared: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- m.AcquireExclusive(t1, pid) }()

	select {
	case <-done:
		t.Fatal("upgrade should not proceed while t2 also holds shared")
	case <-time.After(50 * time.Millisecond):
	}

	m.Release(t2, pid)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("upgrade after t2 released: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("upgrade never proceeded after sole other holder released")
	}
}

func TestReentrant_SameModeIsNoop(t *testing.T) {
	m := NewManager()
	pid := newPID(1, 1)
	tid := ids.NewTxID()

	if err := m.AcquireExclusive(tid, pid); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := m.AcquireExclusive(tid, pid); err != nil {
		t.Fatalf("re-entrant acquire: %v", err)
	}
	if mode, _ := m.HoldsLock(tid, pid); mode != Exclusive {
		t.Errorf("expected Exclusive, got %v", mode)
	}
}

func TestDeadlock_CycleAbortsSynchronously(t *testing.T) {
	m := NewManager()
	pidA := newPID(1, 1)
	pidB := newPID(1, 2)
	t1, t2 := ids.NewTxID(), ids.NewTxID()

	if err := m.AcquireExclusive(t1, pidA); err != nil {
		t.Fatalf("t1 locks A: %v", err)
	}
	if err := m.AcquireExclusive(t2, pidB); err != nil {
		t.Fatalf("t2 locks B: %v", err)
	}

	t2BlockedOnA := make(chan error, 1)
	go func() { t2BlockedOnA <- m.AcquireExclusive(t2, pidA) }()

	// Give t2 time to register as waiting on A before t1 asks for B, so
	// the deadlock is genuinely present when t1's request is evaluated.
	time.Sleep(50 * time.Millisecond)

	err := m.AcquireExclusive(t1, pidB)
	if !errors.Is(err, dberrors.ErrTransactionAborted) {
		t.Fatalf("expected ErrTransactionAborted for t1, got %v", err)
	}

	// t1 backs out of the cycle by releasing what it holds; t2 should
	// then be granted A.
	m.ReleaseAll(t1)

	select {
	case err := <-t2BlockedOnA:
		if err != nil {
			t.Fatalf("t2 should have been granted A after t1 aborted: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("t2 was never granted A after t1 backed out of the cycle")
	}
}

func TestReleaseAll_DropsEveryLock(t *testing.T) {
	m := NewManager()
	pidA, pidB := newPID(1, 1), newPID(1, 2)
	tid := ids.NewTxID()

	if err := m.AcquireShared(tid, pidA); err != nil {
		t.Fatalf("lock A: %v", err)
	}
	if err := m.AcquireExclusive(tid, pidB); err != nil {
		t.Fatalf("lock B: %v", err)
	}

	m.ReleaseAll(tid)

	if _, ok := m.HoldsLock(tid, pidA); ok {
		t.Error("A should be released")
	}
	if _, ok := m.HoldsLock(tid, pidB); ok {
		t.Error("B should be released")
	}
	if m.IsLocked(pidA) || m.IsLocked(pidB) {
		t.Error("no transaction should hold either page after ReleaseAll")
	}
}
