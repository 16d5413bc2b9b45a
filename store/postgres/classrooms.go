package postgres

import (
	"context"
	"errors"

	"github.com/MrEthical07/classgate"
	"github.com/jackc/pgx/v5"
)

// Classrooms implements classgate.ClassroomDirectory and
// classgate.MembershipStore.
type Classrooms struct {
	pool Pool
}

func NewClassrooms(pool Pool) *Classrooms {
	return &Classrooms{pool: pool}
}

func (s *Classrooms) FindClassroom(ctx context.Context, id string) (classgate.Classroom, error) {
	var c classgate.Classroom
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, owner_id FROM classrooms WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.OwnerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return classgate.Classroom{}, classgate.ErrClassroomNotFound
	}
	if err != nil {
		return classgate.Classroom{}, wrap("find classroom", err)
	}
	return c, nil
}

// CreateClassroom inserts a classroom. Classroom management sits outside
// the engine; this exists for seeding and tests.
func (s *Classrooms) CreateClassroom(ctx context.Context, c classgate.Classroom) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO classrooms (id, name, owner_id) VALUES ($1, $2, $3)`,
		c.ID, c.Name, c.OwnerID,
	)
	if err != nil {
		return wrap("create classroom", err)
	}
	return nil
}

func (s *Classrooms) CountOwned(ctx context.Context, ownerID string) (int, error) {
	return s.count(ctx, "count owned classrooms", `SELECT count(*) FROM classrooms WHERE owner_id = $1`, ownerID)
}

// AddMember reports whether a new membership row was written.
func (s *Classrooms) AddMember(ctx context.Context, classroomID, email string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO classroom_members (classroom_id, student_email) VALUES ($1, $2)
		 ON CONFLICT (classroom_id, student_email) DO NOTHING`,
		classroomID, email,
	)
	if err != nil {
		return false, wrap("add member", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Classrooms) IsMember(ctx context.Context, classroomID, email string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM classroom_members WHERE classroom_id = $1 AND student_email = $2)`,
		classroomID, email,
	).Scan(&exists)
	if err != nil {
		return false, wrap("check membership", err)
	}
	return exists, nil
}

func (s *Classrooms) CountJoined(ctx context.Context, email string) (int, error) {
	return s.count(ctx, "count joined classrooms", `SELECT count(*) FROM classroom_members WHERE student_email = $1`, email)
}

func (s *Classrooms) count(ctx context.Context, op, sql string, arg any) (int, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, sql, arg).Scan(&n); err != nil {
		return 0, wrap(op, err)
	}
	return int(n), nil
}
