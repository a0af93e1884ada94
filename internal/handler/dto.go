package handler

import (
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iliyamo/todo-service/internal/apperror"
	"github.com/iliyamo/todo-service/internal/model"
)

// Field limits for user input.
const (
	NameMinLen     = 2
	NameMaxLen     = 50
	PasswordMinLen = 8
)

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type updateUserRequest struct {
	Email    *string `json:"email"`
	Name     *string `json:"name"`
	Password *string `json:"password"`
}

type todoRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Completed   bool    `json:"completed"`
}

type updateTodoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

type batchUpdateRequest struct {
	IDs  []uint64          `json:"ids"`
	Data updateTodoRequest `json:"data"`
}

type batchDeleteRequest struct {
	IDs []uint64 `json:"ids"`
}

// problems collects validation failures so a single response names all of them.
type problems []string

func (p *problems) add(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return apperror.Validation(strings.Join(p, "; "))
}

func (r registerRequest) validate() (model.NewUser, error) {
	var p problems
	email := strings.TrimSpace(r.Email)
	checkEmail(&p, email)
	name := strings.TrimSpace(r.Name)
	checkName(&p, name)
	checkPassword(&p, r.Password)
	if err := p.err(); err != nil {
		return model.NewUser{}, err
	}
	return model.NewUser{Email: email, Name: name, Password: r.Password}, nil
}

func (r loginRequest) validate() (string, string, error) {
	var p problems
	email := strings.TrimSpace(r.Email)
	checkEmail(&p, email)
	if r.Password == "" {
		p.add("password should not be empty")
	}
	return email, r.Password, p.err()
}

func (r refreshRequest) validate() (string, error) {
	tok := strings.TrimSpace(r.RefreshToken)
	if tok == "" {
		return "", apperror.Validation("refresh_token should not be empty")
	}
	return tok, nil
}

func (r updateUserRequest) validate() (model.UserUpdate, error) {
	var (
		p   problems
		upd model.UserUpdate
	)
	if r.Email != nil {
		email := strings.TrimSpace(*r.Email)
		checkEmail(&p, email)
		upd.Email = &email
	}
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		checkName(&p, name)
		upd.Name = &name
	}
	if r.Password != nil {
		checkPassword(&p, *r.Password)
		upd.Password = r.Password
	}
	return upd, p.err()
}

func (r todoRequest) validate() (model.NewTodo, error) {
	var p problems
	title := strings.TrimSpace(r.Title)
	checkTitle(&p, title)
	checkDescription(&p, r.Description)
	if err := p.err(); err != nil {
		return model.NewTodo{}, err
	}
	return model.NewTodo{Title: title, Description: r.Description, Completed: r.Completed}, nil
}

func (r updateTodoRequest) validate() (model.TodoUpdate, error) {
	var (
		p   problems
		upd model.TodoUpdate
	)
	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		checkTitle(&p, title)
		upd.Title = &title
	}
	checkDescription(&p, r.Description)
	upd.Description = r.Description
	upd.Completed = r.Completed
	return upd, p.err()
}

func checkIDs(p *problems, ids []uint64) {
	if len(ids) == 0 {
		p.add("ids must contain at least one id")
		return
	}
	for _, id := range ids {
		if id == 0 {
			p.add("ids must be positive integers")
			return
		}
	}
}

func (r batchUpdateRequest) validate() ([]uint64, model.TodoUpdate, error) {
	var p problems
	checkIDs(&p, r.IDs)
	upd, err := r.Data.validate()
	if err != nil {
		p = append(p, err.Error())
	}
	return r.IDs, upd, p.err()
}

func (r batchDeleteRequest) validate() ([]uint64, error) {
	var p problems
	checkIDs(&p, r.IDs)
	return r.IDs, p.err()
}

func checkEmail(p *problems, email string) {
	if email == "" {
		p.add("email should not be empty")
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		p.add("email must be an email")
	}
}

func checkName(p *problems, name string) {
	n := utf8.RuneCountInString(name)
	if n < NameMinLen || n > NameMaxLen {
		p.add("name must be between %d and %d characters", NameMinLen, NameMaxLen)
	}
}

func checkPassword(p *problems, pw string) {
	if utf8.RuneCountInString(pw) < PasswordMinLen {
		p.add("password must be longer than or equal to %d characters", PasswordMinLen)
		return
	}
	var lower, upper, digit bool
	for _, r := range pw {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !lower || !upper || !digit {
		p.add("Password must contain at least one uppercase letter, one lowercase letter, and one number")
	}
}

func checkTitle(p *problems, title string) {
	switch n := utf8.RuneCountInString(title); {
	case n == 0:
		p.add("title should not be empty")
	case n > model.TitleMaxLen:
		p.add("title must be shorter than or equal to %d characters", model.TitleMaxLen)
	}
}

func checkDescription(p *problems, desc *string) {
	if desc != nil && utf8.RuneCountInString(*desc) > model.DescriptionMaxLen {
		p.add("description must be shorter than or equal to %d characters", model.DescriptionMaxLen)
	}
}

// parseTodoQuery reads the listing filters from the query string. Absent
// parameters keep their zero value and are defaulted by Normalize.
func parseTodoQuery(v url.Values) (model.TodoQuery, error) {
	var (
		p problems
		q model.TodoQuery
	)
	q.Search = strings.TrimSpace(v.Get("search"))

	switch raw := v.Get("completed"); raw {
	case "":
	case "true", "false":
		done := raw == "true"
		q.Completed = &done
	default:
		p.add("completed must be a boolean value")
	}

	q.Page = positiveInt(&p, v, "page")
	q.Limit = positiveInt(&p, v, "limit")

	switch s := v.Get("sortBy"); s {
	case "", model.SortCreatedAt, model.SortTitle, model.SortCompleted:
		q.SortBy = s
	default:
		p.add("sortBy must be one of the following values: createdAt, title, completed")
	}
	switch s := v.Get("sortOrder"); s {
	case "", model.SortAsc, model.SortDesc:
		q.SortOrder = s
	default:
		p.add("sortOrder must be one of the following values: asc, desc")
	}

	if err := p.err(); err != nil {
		return model.TodoQuery{}, err
	}
	return q.Normalize(), nil
}

func positiveInt(p *problems, v url.Values, name string) int {
	raw := v.Get(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		p.add("%s must not be less than 1", name)
		return 0
	}
	return n
}
