// Package memory holds process-local implementations of the classgate
// directories. They back the development server and tests; state is lost on
// exit.
package memory

import (
	"context"
	"sync"

	"github.com/MrEthical07/classgate"
)

// Users implements classgate.UserDirectory. Emails are unique.
type Users struct {
	mu      sync.RWMutex
	byID    map[string]classgate.User
	byEmail map[string]string
}

func NewUsers() *Users {
	return &Users{
		byID:    make(map[string]classgate.User),
		byEmail: make(map[string]string),
	}
}

func (s *Users) FindByEmail(_ context.Context, email string) (classgate.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return classgate.User{}, classgate.ErrUserNotFound
	}
	return s.byID[id], nil
}

func (s *Users) FindByID(_ context.Context, id string) (classgate.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return classgate.User{}, classgate.ErrUserNotFound
	}
	return u, nil
}

func (s *Users) Create(_ context.Context, u classgate.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[u.Email]; ok {
		return classgate.ErrAlreadyRegistered
	}
	s.byID[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return nil
}

type membership struct{ classroomID, email string }

// Classrooms implements classgate.ClassroomDirectory and
// classgate.MembershipStore.
type Classrooms struct {
	mu      sync.RWMutex
	rooms   map[string]classgate.Classroom
	members map[membership]struct{}
}

func NewClassrooms() *Classrooms {
	return &Classrooms{
		rooms:   make(map[string]classgate.Classroom),
		members: make(map[membership]struct{}),
	}
}

// CreateClassroom adds or replaces c.
func (s *Classrooms) CreateClassroom(_ context.Context, c classgate.Classroom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[c.ID] = c
	return nil
}

func (s *Classrooms) FindClassroom(_ context.Context, id string) (classgate.Classroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.rooms[id]
	if !ok {
		return classgate.Classroom{}, classgate.ErrClassroomNotFound
	}
	return c, nil
}

func (s *Classrooms) CountOwned(_ context.Context, ownerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, c := range s.rooms {
		if c.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (s *Classrooms) AddMember(_ context.Context, classroomID, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := membership{classroomID, email}
	if _, ok := s.members[k]; ok {
		return false, nil
	}
	s.members[k] = struct{}{}
	return true, nil
}

func (s *Classrooms) IsMember(_ context.Context, classroomID, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[membership{classroomID, email}]
	return ok, nil
}

func (s *Classrooms) CountJoined(_ context.Context, email string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for k := range s.members {
		if k.email == email {
			n++
		}
	}
	return n, nil
}
