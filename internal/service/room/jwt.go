package room

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	MemberId string `json:"member_id"`
	RoomId   string `json:"room_id"`
}

func (s *service) generateAuthToken(memberId, roomId string) (string, error) {
	claims := jwt.MapClaims{
		"member_id": memberId,
		"room_id":   roomId,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(s.secret))
}

func (s *service) parseAuthToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.secret), nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	memberId, ok := claims["member_id"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	roomId, ok := claims["room_id"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}

	return &Claims{
		MemberId: memberId,
		RoomId:   roomId,
	}, nil
}
