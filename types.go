package classgate

import (
	"context"
	"time"

	"github.com/MrEthical07/classgate/jwt"
)

// Role is the account type chosen at registration.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// User is a registered account. Email is stored normalized to lower case.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Classroom is owned by a teacher. Read-only for the engine.
type Classroom struct {
	ID      string
	Name    string
	OwnerID string
}

// Identity is the authenticated caller resolved from an access token.
type Identity struct {
	UserID string
}

// Session is the result of a successful registration, login or refresh.
type Session struct {
	User User
	jwt.Pair
}

// RegistrationInput carries the fields submitted to CompleteRegistration.
type RegistrationInput struct {
	Name     string
	Email    string
	Password string
	Code     string
	Role     Role
}

// JoinResult reports the outcome of a successful RedeemJoin.
type JoinResult struct {
	ClassroomID   string
	StudentEmail  string
	AlreadyMember bool
}

// ProfileStats summarizes a user's classroom activity. TotalClasses counts
// classrooms a teacher owns and JoinedClasses those a student has joined.
type ProfileStats struct {
	Role          Role `json:"role"`
	TotalClasses  int  `json:"totalClasses"`
	JoinedClasses int  `json:"joinedClasses"`
}

// UserDirectory persists accounts. Implementations return ErrUserNotFound
// for missing users and ErrAlreadyRegistered when Create hits an existing
// email.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	Create(ctx context.Context, user User) error
}

// ClassroomDirectory resolves classrooms. FindClassroom returns
// ErrClassroomNotFound for unknown ids.
type ClassroomDirectory interface {
	FindClassroom(ctx context.Context, id string) (Classroom, error)
	CountOwned(ctx context.Context, ownerID string) (int, error)
}

// MembershipStore records which students belong to which classroom.
// AddMember is idempotent and reports whether a new row was written.
type MembershipStore interface {
	AddMember(ctx context.Context, classroomID, email string) (bool, error)
	IsMember(ctx context.Context, classroomID, email string) (bool, error)
	CountJoined(ctx context.Context, email string) (int, error)
}

// Notifier delivers a passcode message out of band.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, to, subject, body string) error

func (f NotifierFunc) Send(ctx context.Context, to, subject, body string) error {
	return f(ctx, to, subject, body)
}
