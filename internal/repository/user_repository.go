package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"retreat-booking-backend/internal/model"
	"retreat-booking-backend/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, first_name, last_name, phone, city,
	academic_program_code, faculty, student_number, tickets,
	membership_ends_at, created_at, updated_at, deleted_at`

type UserRepository interface {
	Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
	Update(ctx context.Context, id int64, params model.UpdateUserParams) (*model.User, error)

	// Transaction methods
	AddTickets(ctx context.Context, tx pgx.Tx, userID int64, count int) error
	ConsumeTickets(ctx context.Context, tx pgx.Tx, userID int64, count int) error
	ExtendMembership(ctx context.Context, tx pgx.Tx, userID int64, until time.Time) error
}

type UserRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &UserRepositoryImpl{pool: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.City,
		&user.AcademicProgramCode,
		&user.Faculty,
		&user.StudentNumber,
		&user.Tickets,
		&user.MembershipEndsAt,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepositoryImpl) Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	query := `
		INSERT INTO users (email, first_name, last_name)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, query, req.Email, req.FirstName, req.LastName))
}

func (r *UserRepositoryImpl) FindByID(ctx context.Context, id int64) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`
	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepositoryImpl) Update(ctx context.Context, id int64, params model.UpdateUserParams) (*model.User, error) {
	sets := []string{}
	args := []interface{}{}
	argPos := 1

	addSet := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if params.FirstName != nil {
		addSet("first_name", *params.FirstName)
	}
	if params.LastName != nil {
		addSet("last_name", *params.LastName)
	}
	if params.Phone != nil {
		addSet("phone", *params.Phone)
	}
	if params.City != nil {
		addSet("city", *params.City)
	}
	if params.AcademicProgramCode != nil {
		addSet("academic_program_code", *params.AcademicProgramCode)
	}
	if params.Faculty != nil {
		addSet("faculty", *params.Faculty)
	}
	if params.StudentNumber != nil {
		addSet("student_number", *params.StudentNumber)
	}

	if len(sets) == 0 {
		return nil, apperrors.ErrInvalidInput
	}

	addSet("updated_at", time.Now().UTC())

	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE users
		SET %s
		WHERE id = $%d AND deleted_at IS NULL
		RETURNING `+userColumns, strings.Join(sets, ", "), argPos)

	user, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepositoryImpl) AddTickets(ctx context.Context, tx pgx.Tx, userID int64, count int) error {
	result, err := tx.Exec(ctx, `
		UPDATE users
		SET tickets = tickets + $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL
	`, count, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// ConsumeTickets only succeeds when the user holds enough tickets; the
// balance guard in the WHERE clause makes concurrent spends safe.
func (r *UserRepositoryImpl) ConsumeTickets(ctx context.Context, tx pgx.Tx, userID int64, count int) error {
	result, err := tx.Exec(ctx, `
		UPDATE users
		SET tickets = tickets - $1, updated_at = $2
		WHERE id = $3 AND tickets >= $1 AND deleted_at IS NULL
	`, count, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrInvalidInput
	}
	return nil
}

func (r *UserRepositoryImpl) ExtendMembership(ctx context.Context, tx pgx.Tx, userID int64, until time.Time) error {
	result, err := tx.Exec(ctx, `
		UPDATE users
		SET membership_ends_at = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL
	`, until, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}
