package bundling

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/SystAttic/TraversiumNotificationService/internal/domain"
)

// BundleKey derives the deterministic grouping key for an unseen
// notification. Two notifications with the same key are one logical
// activity. The fields that participate depend on the notification type:
// reaction and metadata kinds omit the sender so that different actors
// collapse into one bundle, sender-attributed kinds include it so they never
// do. Absent optional reference ids are omitted, not rendered as a
// placeholder.
func BundleKey(n domain.UnseenNotification) (string, error) {
	if n.ReceiverID == "" {
		return "", fmt.Errorf("%w: receiverId cannot be empty", domain.ErrInvalidNotification)
	}
	if n.SenderID == "" {
		return "", fmt.Errorf("%w: senderId cannot be empty", domain.ErrInvalidNotification)
	}
	if n.Type == "" {
		return "", fmt.Errorf("%w: notification type cannot be empty", domain.ErrInvalidNotification)
	}

	switch n.Type {
	case domain.TypeLikePhoto:
		return joinKey(n.ReceiverID, n.Type, n.MediaReferenceID), nil

	case domain.TypeAddPhoto, domain.TypeRemovePhoto:
		return joinKeyWithSender(n.ReceiverID, n.SenderID, n.Type, n.CollectionReferenceID, n.NodeReferenceID), nil

	case domain.TypeCreateMoment, domain.TypeDeleteMoment, domain.TypeRearrangeMoments:
		return joinKeyWithSender(n.ReceiverID, n.SenderID, n.Type, n.CollectionReferenceID), nil

	case domain.TypeChangeMomentTitle, domain.TypeChangeMomentDescription, domain.TypeChangeMomentCoverPhoto:
		return joinKey(n.ReceiverID, n.Type, n.CollectionReferenceID, n.NodeReferenceID), nil

	case domain.TypeAddComment, domain.TypeReplyComment:
		return joinKeyWithSender(n.ReceiverID, n.SenderID, n.Type, n.MediaReferenceID, n.CommentReferenceID), nil

	case domain.TypeCreateTrip, domain.TypeDeleteTrip,
		domain.TypeChangeTripTitle, domain.TypeChangeTripDescription, domain.TypeChangeTripCoverPhoto,
		domain.TypeAddCollaborator, domain.TypeRemoveCollaborator,
		domain.TypeAddViewer, domain.TypeRemoveViewer:
		return joinKeyWithSender(n.ReceiverID, n.SenderID, n.Type, n.CollectionReferenceID), nil

	case domain.TypeFollowUser:
		return joinKey(n.ReceiverID, n.Type), nil

	case domain.TypeHealthcheck:
		return "", fmt.Errorf("%w: healthcheck notifications are never bundled", domain.ErrInvalidNotification)
	}

	return "", fmt.Errorf("%w: unknown notification type %q", domain.ErrInvalidNotification, n.Type)
}

func joinKey(receiverID string, t domain.NotificationType, refIDs ...*int64) string {
	parts := []string{receiverID}
	parts = appendRefs(parts, refIDs)
	parts = append(parts, string(t))
	return strings.Join(parts, "-")
}

func joinKeyWithSender(receiverID, senderID string, t domain.NotificationType, refIDs ...*int64) string {
	parts := []string{receiverID, senderID}
	parts = appendRefs(parts, refIDs)
	parts = append(parts, string(t))
	return strings.Join(parts, "-")
}

func appendRefs(parts []string, refIDs []*int64) []string {
	for _, id := range refIDs {
		if id != nil {
			parts = append(parts, strconv.FormatInt(*id, 10))
		}
	}
	return parts
}
