package ports

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	lksdk "github.com/livekit/server-sdk-go/v2"

	"github.com/livekit/protocol/livekit"
)

// LiveKitMeeting implements MeetingPort by creating one LiveKit room per
// booking. The join URL handed back is the public room endpoint; clients
// still need a per-participant access token, issued separately by the
// frontend session flow, not by the booking lifecycle.
type LiveKitMeeting struct {
	roomClient *lksdk.RoomServiceClient
	publicURL  string
}

func NewLiveKitMeeting(url, apiKey, apiSecret, publicURL string) *LiveKitMeeting {
	return &LiveKitMeeting{
		roomClient: lksdk.NewRoomServiceClient(url, apiKey, apiSecret),
		publicURL:  publicURL,
	}
}

func (m *LiveKitMeeting) CreateMeeting(ctx context.Context, bookingID uuid.UUID, topic string, start time.Time, duration time.Duration) (*MeetingHandle, error) {
	roomName := "booking-" + bookingID.String()

	req := &livekit.CreateRoomRequest{
		Name:         roomName,
		EmptyTimeout: uint32((duration + 30*time.Minute).Seconds()),
		MaxParticipants: 2,
	}
	room, err := m.roomClient.CreateRoom(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("livekit: failed to create room: %w", err)
	}

	return &MeetingHandle{
		MeetingID: room.Name,
		JoinURL:   fmt.Sprintf("%s/rooms/%s", m.publicURL, room.Name),
	}, nil
}

func (m *LiveKitMeeting) CancelMeeting(ctx context.Context, meetingID string) error {
	_, err := m.roomClient.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: meetingID})
	if err != nil {
		return fmt.Errorf("livekit: failed to delete room: %w", err)
	}
	return nil
}
