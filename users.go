package main

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// validate checks single values the binding tags can't cover (email shape after
// normalization).
var validate = validator.New()

// validationMessage turns a binding error into a short client-facing message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return strings.ToLower(fe.Field()) + " failed validation: " + fe.Tag()
	}
	return "invalid request body"
}

func validEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// validateEnums checks gender, level and objective against the known values.
// nil pointers are skipped so the same check serves create and patch.
func validateEnums(gender, level, objective *string) string {
	if gender != nil && !genders[*gender] {
		return "gender must be one of: masculino, feminino"
	}
	if level != nil {
		if _, ok := activityMultipliers[*level]; !ok {
			return "level must be one of: sedentario, levemente_ativo, consideravelmente_ativo, ativo_com_frequencia"
		}
	}
	if objective != nil {
		if _, ok := objectiveAdjustments[*objective]; !ok {
			return "objective must be one of: emagrecer, manutencao, ganhar_massa"
		}
	}
	return ""
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// parseUserID reads the :id path param. Writes a 400 and returns ok=false when
// it isn't a positive integer.
func parseUserID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		apiError(c, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}

// createUser registers a new account.
// POST /api/users (public). Returns 201 with the user, 409 if the email is taken.
func (h *Handler) createUser(c *gin.Context) {
	var body createUserRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, validationMessage(err))
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	body.Email = normalizeEmail(body.Email)
	if body.Name == "" {
		apiError(c, http.StatusBadRequest, "name is required")
		return
	}
	if !validEmail(body.Email) {
		apiError(c, http.StatusBadRequest, "invalid email")
		return
	}
	if msg := validateEnums(&body.Gender, &body.Level, &body.Objective); msg != "" {
		apiError(c, http.StatusBadRequest, msg)
		return
	}

	hash, err := hashPassword(body.Password)
	if err != nil {
		log.Printf("[createUser] hash error: %v", err)
		apiError(c, http.StatusInternalServerError, "failed to create user")
		return
	}

	u, err := queryOne[user](h.db, c,
		`INSERT INTO users (name, email, password, auth_token, age, weight_kg, height_cm, gender, level, objective)
		 VALUES (@name, @email, @password, @authToken, @age, @weightKG, @heightCM, @gender, @level, @objective)
		 RETURNING *`,
		pgx.NamedArgs{
			"name":      body.Name,
			"email":     body.Email,
			"password":  hash,
			"authToken": uuid.New().String(),
			"age":       body.Age,
			"weightKG":  body.WeightKG,
			"heightCM":  body.HeightCM,
			"gender":    body.Gender,
			"level":     body.Level,
			"objective": body.Objective,
		})
	if err != nil {
		if isUniqueViolation(err) {
			apiError(c, http.StatusConflict, "email already registered")
			return
		}
		apiError(c, http.StatusInternalServerError, "failed to create user")
		return
	}

	populateEnergy(&u)
	c.JSON(http.StatusCreated, u)
}

// listUsers returns every user, oldest first.
// GET /api/users. Returns an empty array (not null) when there are none.
func (h *Handler) listUsers(c *gin.Context) {
	users, err := queryMany[user](h.db, c, "SELECT * FROM users ORDER BY id ASC", pgx.NamedArgs{})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch users")
		return
	}
	if users == nil {
		users = []user{}
	}
	for i := range users {
		populateEnergy(&users[i])
	}
	c.JSON(http.StatusOK, users)
}

// getUser returns one user by id.
// GET /api/users/:id.
func (h *Handler) getUser(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	u, err := queryOne[user](h.db, c, "SELECT * FROM users WHERE id = @id", pgx.NamedArgs{"id": id})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "user not found")
		} else {
			apiError(c, http.StatusInternalServerError, "failed to fetch user")
		}
		return
	}

	populateEnergy(&u)
	c.JSON(http.StatusOK, u)
}

// patchUser updates only the provided profile fields of the authenticated user.
// PATCH /api/users/:id. Users may only modify themselves. Pointer fields in the
// request body distinguish "not provided" from zero.
func (h *Handler) patchUser(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}
	if id != c.GetInt("user_id") {
		apiError(c, http.StatusForbidden, "cannot modify another user")
		return
	}

	var body patchUserRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, validationMessage(err))
		return
	}
	if msg := validateEnums(body.Gender, body.Level, body.Objective); msg != "" {
		apiError(c, http.StatusBadRequest, msg)
		return
	}

	// Build SET clause dynamically; only update fields the client actually sent
	setClauses := []string{}
	args := pgx.NamedArgs{"id": id}

	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			apiError(c, http.StatusBadRequest, "name must not be empty")
			return
		}
		setClauses = append(setClauses, "name = @name")
		args["name"] = name
	}
	if body.Email != nil {
		email := normalizeEmail(*body.Email)
		if !validEmail(email) {
			apiError(c, http.StatusBadRequest, "invalid email")
			return
		}
		setClauses = append(setClauses, "email = @email")
		args["email"] = email
	}
	if body.Password != nil {
		hash, err := hashPassword(*body.Password)
		if err != nil {
			log.Printf("[patchUser] hash error for user %d: %v", id, err)
			apiError(c, http.StatusInternalServerError, "failed to update user")
			return
		}
		setClauses = append(setClauses, "password = @password")
		args["password"] = hash
	}
	if body.Age != nil {
		setClauses = append(setClauses, "age = @age")
		args["age"] = *body.Age
	}
	if body.WeightKG != nil {
		setClauses = append(setClauses, "weight_kg = @weightKG")
		args["weightKG"] = *body.WeightKG
	}
	if body.HeightCM != nil {
		setClauses = append(setClauses, "height_cm = @heightCM")
		args["heightCM"] = *body.HeightCM
	}
	if body.Gender != nil {
		setClauses = append(setClauses, "gender = @gender")
		args["gender"] = *body.Gender
	}
	if body.Level != nil {
		setClauses = append(setClauses, "level = @level")
		args["level"] = *body.Level
	}
	if body.Objective != nil {
		setClauses = append(setClauses, "objective = @objective")
		args["objective"] = *body.Objective
	}

	if len(setClauses) == 0 {
		apiError(c, http.StatusBadRequest, "no fields to update")
		return
	}

	query := "UPDATE users SET " +
		strings.Join(setClauses, ", ") +
		", updated_at = now() WHERE id = @id RETURNING *"

	u, err := queryOne[user](h.db, c, query, args)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			apiError(c, http.StatusNotFound, "user not found")
		case isUniqueViolation(err):
			apiError(c, http.StatusConflict, "email already registered")
		default:
			apiError(c, http.StatusInternalServerError, "failed to update user")
		}
		return
	}

	populateEnergy(&u)
	c.JSON(http.StatusOK, u)
}

// deleteUser removes the authenticated user's account.
// DELETE /api/users/:id. Returns 204 on success, 404 if not found.
func (h *Handler) deleteUser(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}
	if id != c.GetInt("user_id") {
		apiError(c, http.StatusForbidden, "cannot delete another user")
		return
	}

	result, err := h.db.Exec(c, "DELETE FROM users WHERE id = @id", pgx.NamedArgs{"id": id})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to delete user")
		return
	}
	if result.RowsAffected() == 0 {
		apiError(c, http.StatusNotFound, "user not found")
		return
	}

	c.Status(http.StatusNoContent)
}

// debugUserRow is what GET /api/_dbg/users-by-email exposes per match.
type debugUserRow struct {
	ID        int       `json:"id"         db:"id"`
	Email     string    `json:"email"      db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// debugUsersByEmail lists every account matching an email case-insensitively,
// to diagnose duplicate-account logins. Registered in debug mode only.
// GET /api/_dbg/users-by-email?email=.
func (h *Handler) debugUsersByEmail(c *gin.Context) {
	email := normalizeEmail(c.Query("email"))
	if email == "" {
		apiError(c, http.StatusBadRequest, "email query param is required")
		return
	}

	rows, err := queryMany[debugUserRow](h.db, c,
		`SELECT id, email, created_at FROM users
		 WHERE lower(email) = @email ORDER BY created_at DESC`,
		pgx.NamedArgs{"email": email})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch users")
		return
	}
	if rows == nil {
		rows = []debugUserRow{}
	}

	c.JSON(http.StatusOK, gin.H{"count": len(rows), "users": rows})
}
