package uuidutil

import "github.com/google/uuid"

func New() string {
	return uuid.New().String()
}

// Short возвращает первые 8 символов нового uuid, для request id и логов
func Short() string {
	return New()[:8]
}

func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
