package service

import (
	"log"

	"refer-bot/internal/gateway"
)

const statusLeft = "left"

// MembershipService checks the join gate against the required channels.
type MembershipService struct {
	gw       gateway.Gateway
	channels []string
}

func NewMembershipService(gw gateway.Gateway, channels []string) *MembershipService {
	return &MembershipService{gw: gw, channels: channels}
}

// HasJoinedAll reports whether the user belongs to every required channel.
// Only an explicit "left" status counts as not joined; a transport error is
// logged and read as joined, so an unreachable gateway never locks users
// out of the flow.
func (s *MembershipService) HasJoinedAll(userID int64) bool {
	for _, channel := range s.channels {
		status, err := s.gw.ChatMemberStatus(channel, userID)
		if err != nil {
			log.Printf("chat member %s for %d: %v", channel, userID, err)
			continue
		}
		if status == statusLeft {
			return false
		}
	}
	return true
}
