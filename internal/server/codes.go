package server

import (
	"crypto/rand"
	"errors"

	"wordwrangler/internal/db"

	"gorm.io/gorm"
)

// newGameCode returns a short join code from an alphabet without look-alike
// characters.
func newGameCode() string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "AAAAAA"
	}
	for i := range buf {
		buf[i] = alphabet[int(buf[i])%len(alphabet)]
	}
	return string(buf)
}

// uniqueGameCode generates a code not yet taken by any game, bounded by
// attempts.
func (s *Server) uniqueGameCode() (string, error) {
	for i := 0; i < s.cfg.CodeAttempts; i++ {
		code := newGameCode()
		var existing db.Game
		err := s.db.Select("id").Where("code = ?", code).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errors.New("could not generate a unique game code")
}
