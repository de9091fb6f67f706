package store

import (
	"errors"
	"fmt"

	"github.com/tasklink/chat-server/domain/job"
	"github.com/tasklink/chat-server/domain/user"
	"golang.org/x/crypto/bcrypt"
)

// DemoPassword is the password of every seeded demo account.
const DemoPassword = "password123"

// Seed inserts a small set of demo users and jobs unless they already exist.
// Accounts: poster@tasklink.test (poster of job-demo-1), doer@tasklink.test (its worker),
// other@tasklink.test (no access) and unverified@tasklink.test.
func Seed(repo *Repository) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash demo password: %w", err)
	}

	users := []user.User{
		{ID: "user-demo-poster", Email: "poster@tasklink.test", FirstName: "Thandi", LastName: "Nkosi", Role: user.RolePoster, IsVerified: true},
		{ID: "user-demo-doer", Email: "doer@tasklink.test", FirstName: "Sipho", LastName: "Dlamini", Role: user.RoleDoer, IsVerified: true},
		{ID: "user-demo-other", Email: "other@tasklink.test", FirstName: "Lerato", LastName: "Mokoena", Role: user.RoleDoer, IsVerified: true},
		{ID: "user-demo-unverified", Email: "unverified@tasklink.test", FirstName: "Pieter", LastName: "van Wyk", Role: user.RoleDoer},
	}
	for i := range users {
		if _, err := repo.FindUserByID(users[i].ID); err == nil {
			continue
		} else if !errors.Is(err, ErrUserNotFound) {
			return err
		}
		users[i].PasswordHash = string(hash)
		if err := repo.CreateUser(&users[i]); err != nil {
			return err
		}
	}

	jobs := []job.Job{
		{ID: "job-demo-1", Title: "Fix leaking kitchen tap", PosterID: "user-demo-poster", WorkerID: "user-demo-doer", Status: job.StatusAssigned},
		{ID: "job-demo-2", Title: "Garden clean-up", PosterID: "user-demo-poster", Status: job.StatusOpen},
	}
	for i := range jobs {
		if _, err := repo.FindJob(jobs[i].ID); err == nil {
			continue
		} else if !errors.Is(err, ErrJobNotFound) {
			return err
		}
		if err := repo.CreateJob(&jobs[i]); err != nil {
			return err
		}
	}
	return nil
}
