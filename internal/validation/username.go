package validation

import (
	"errors"
	"fmt"
	"regexp"
)

// Границы длины учетных данных. Сервер проверяет то же самое, клиент
// валидирует до сетевого вызова, чтобы не жечь запрос впустую.
const (
	usernameMinLen = 3
	usernameMaxLen = 32
	passwordMinLen = 12
)

// usernameRe: латиница, цифры и подчеркивание. Никаких точек и дефисов,
// имя попадает в логи и в пути не должно ничего ломать.
var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

var (
	ErrUsernameEmpty = errors.New("username cannot be empty")
	ErrPasswordEmpty = errors.New("password cannot be empty")
)

// ValidateUsername проверяет имя пользователя перед регистрацией и логином.
func ValidateUsername(username string) error {
	switch {
	case username == "":
		return ErrUsernameEmpty
	case len(username) < usernameMinLen:
		return fmt.Errorf("username must be at least %d characters long", usernameMinLen)
	case len(username) > usernameMaxLen:
		return fmt.Errorf("username must not exceed %d characters", usernameMaxLen)
	case !usernameRe.MatchString(username):
		return errors.New("username can only contain letters (a-z, A-Z), numbers (0-9), and underscores (_)")
	}

	return nil
}

// ValidatePassword отсекает заведомо слабые пароли. Состав символов не
// ограничиваем, важна только длина.
func ValidatePassword(password string) error {
	if password == "" {
		return ErrPasswordEmpty
	}

	if len(password) < passwordMinLen {
		return fmt.Errorf("password must be at least %d characters long", passwordMinLen)
	}

	return nil
}
