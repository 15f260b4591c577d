package domain

import "time"

// User — учётная запись покупателя. Аутентификация — забота внешнего слоя;
// ядро читает пользователей только для снапшота в заказе.
type User struct {
	ID        int64
	Name      string
	Surname   string
	Email     string
	Phone     string
	Admin     bool
	CreatedAt time.Time
}

// UserSnapshot — копия данных пользователя, встраиваемая в заказ при
// создании. Изменения профиля задним числом заказ не меняют.
type UserSnapshot struct {
	ID      int64
	Name    string
	Surname string
	Email   string
	Phone   string
}

// Snapshot делает замороженную копию для встраивания в Order.
func (u *User) Snapshot() *UserSnapshot {
	if u == nil {
		return nil
	}
	return &UserSnapshot{
		ID:      u.ID,
		Name:    u.Name,
		Surname: u.Surname,
		Email:   u.Email,
		Phone:   u.Phone,
	}
}
