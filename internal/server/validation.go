package server

import (
	"errors"
	"fmt"
	"strings"
)

func validateDisplayName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", errors.New("display_name is required")
	}
	if len(trimmed) > maxDisplayNameLength {
		return "", fmt.Errorf("display_name must be %d characters or fewer", maxDisplayNameLength)
	}
	return trimmed, nil
}

func validateAvatar(avatar string) (string, error) {
	trimmed := strings.TrimSpace(avatar)
	if len(trimmed) > maxAvatarLength {
		return "", fmt.Errorf("avatar must be %d characters or fewer", maxAvatarLength)
	}
	return trimmed, nil
}

func validateTeamName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", errors.New("name is required")
	}
	if len(trimmed) > maxTeamNameLength {
		return "", fmt.Errorf("name must be %d characters or fewer", maxTeamNameLength)
	}
	return trimmed, nil
}

func validateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", errors.New("content cannot be empty")
	}
	if len(trimmed) > maxContentLength {
		return "", fmt.Errorf("content exceeds maximum length of %d characters", maxContentLength)
	}
	return trimmed, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
