// internal/services/locks.go
package services

import (
	"fmt"
	"sync"
)

// keyedMutex hands out one mutex per key so decisions on unrelated sessions
// and students never serialize behind each other. Entries are dropped once
// the last holder releases them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Acquire blocks until the key's mutex is held and returns its release func.
func (k *keyedMutex) Acquire(key string) func() {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &keyedLock{}
		k.locks[key] = lock
	}
	lock.refs++
	k.mu.Unlock()

	lock.Lock()

	return func() {
		lock.Unlock()
		k.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// AcquireSessionStudent takes the session lock, then the student lock.
// Every caller uses this order, so two decisions touching the same pair of
// entities cannot deadlock.
func (k *keyedMutex) AcquireSessionStudent(sessionID, studentID uint) func() {
	releaseSession := k.Acquire(sessionKey(sessionID))
	releaseStudent := k.Acquire(studentKey(studentID))
	return func() {
		releaseStudent()
		releaseSession()
	}
}

func sessionKey(id uint) string {
	return fmt.Sprintf("session:%d", id)
}

func studentKey(id uint) string {
	return fmt.Sprintf("student:%d", id)
}

func professorKey(id uint) string {
	return fmt.Sprintf("professor:%d", id)
}
