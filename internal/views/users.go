package views

import (
	"context"
	"fmt"
	"sync"

	"roombook/internal/api"
	"roombook/internal/mq"
	"roombook/internal/role"
)

type UsersAPI interface {
	ListUsers(ctx context.Context) ([]api.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

type Users struct {
	api UsersAPI
	options

	mu    sync.RWMutex
	users []api.User
}

func NewUsers(a UsersAPI, opts ...Option) *Users {
	return &Users{api: a, options: buildOptions(opts)}
}

func (m *Users) Load(ctx context.Context) ([]api.User, error) {
	users, err := m.api.ListUsers(ctx)
	if err != nil {
		m.logger.Printf("list users: %v", err)
		return nil, err
	}
	m.mu.Lock()
	m.users = users
	m.mu.Unlock()
	return m.Users(), nil
}

func (m *Users) Users() []api.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]api.User(nil), m.users...)
}

// CanDelete is false for admin accounts; front ends do not offer it.
func CanDelete(u api.User) bool {
	return !role.Role(u.Role).IsAdmin()
}

func (m *Users) Delete(ctx context.Context, id int64, confirm Confirm) error {
	if err := confirmed(ctx, confirm, fmt.Sprintf("Delete user %d?", id)); err != nil {
		return err
	}
	if err := m.api.DeleteUser(ctx, id); err != nil {
		m.logger.Printf("delete user id=%d: %v", id, err)
		return err
	}
	m.mu.Lock()
	out := m.users[:0:0]
	for _, u := range m.users {
		if u.ID != id {
			out = append(out, u)
		}
	}
	m.users = out
	m.mu.Unlock()

	m.events.Publish(mq.TopicUserDeleted, mq.NewEvent("user_deleted", 0, id, nil))
	return nil
}
