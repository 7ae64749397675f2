package offers

import (
	"context"
	"strconv"
	"strings"

	"offersbot/core/logger"

	"log/slog"
)

// Transport is the narrow announcement-channel capability the service needs.
// Implementations are best-effort; the service never rolls back repository
// state when a transport call fails.
type Transport interface {
	Send(ctx context.Context, chatID int64, text string) (messageID int, err error)
	Delete(ctx context.Context, chatID int64, messageID int) error
}

// Service orchestrates offer lifecycle operations. The repository is always
// mutated before any transport effect, so a crash between the two leaves the
// repository correct and the announcement stale or missing, never the reverse.
type Service struct {
	repo Repository
	tr   Transport

	contact     string
	defaultChat int64
}

// NewService builds a lifecycle service. defaultChat is the configured
// announcement destination; 0 means announce into the admin's current chat
// unless a settings override exists.
func NewService(repo Repository, tr Transport, contact string, defaultChat int64) *Service {
	if strings.TrimSpace(contact) == "" {
		contact = "LMK if interested."
	}
	return &Service{repo: repo, tr: tr, contact: contact, defaultChat: defaultChat}
}

// Contact returns the configured announcement suffix.
func (s *Service) Contact() string { return s.contact }

// AnnounceChat resolves the announcement destination: the settings override
// wins, then the configured default, then the originating chat.
func (s *Service) AnnounceChat(ctx context.Context, originChat int64) int64 {
	if value, ok, err := s.repo.GetSetting(ctx, SettingAnnounceChat); err == nil && ok {
		if id, perr := strconv.ParseInt(strings.TrimSpace(value), 10, 64); perr == nil && id != 0 {
			return id
		}
	}
	if s.defaultChat != 0 {
		return s.defaultChat
	}
	return originChat
}

// SetAnnounceChat persists the announcement destination override.
func (s *Service) SetAnnounceChat(ctx context.Context, chatID int64) error {
	return s.repo.SetSetting(ctx, SettingAnnounceChat, strconv.FormatInt(chatID, 10))
}

// CreateResult reports the outcome of Create. AnnounceErr is non-nil when the
// offer exists but the announcement could not be published.
type CreateResult struct {
	Offer       Offer
	ChatID      int64
	Announced   bool
	AnnounceErr error
}

// Create inserts a new active offer and publishes an announcement for it.
// A publish failure is a partial failure: the offer stays, unannounced.
func (s *Service) Create(ctx context.Context, name string, quantity int, price string, originChat int64) (CreateResult, error) {
	offer, err := s.repo.Add(ctx, name, quantity, price)
	if err != nil {
		return CreateResult{}, err
	}

	chatID := s.AnnounceChat(ctx, originChat)
	res := CreateResult{Offer: offer, ChatID: chatID}

	messageID, sendErr := s.tr.Send(ctx, chatID, Announcement(offer, s.contact))
	if sendErr != nil {
		logger.Warn(ctx, "service.offers", "announce.send_failed",
			slog.Int64("offer_id", offer.ID),
			slog.Int64("chat_id", chatID),
			slog.String("err", sendErr.Error()),
		)
		res.AnnounceErr = sendErr
		return res, nil
	}
	res.Announced = true
	res.Offer.AnnounceChatID = chatID
	res.Offer.AnnounceMessageID = messageID

	if _, err := s.repo.AttachAnnouncement(ctx, offer.ID, chatID, messageID); err != nil {
		logger.Error(ctx, "service.offers", "announce.bind_failed",
			slog.Int64("offer_id", offer.ID),
			slog.String("err", err.Error()),
		)
	}
	return res, nil
}

// QuantityResult reports the outcome of SetQuantity.
type QuantityResult struct {
	Offer   Offer
	Retired bool
	// AnnouncementRemoved is meaningful only when Retired is true.
	AnnouncementRemoved bool
}

// SetQuantity updates an offer's quantity. Zero retires the offer; any
// positive value re-activates it, which covers restocking a retired offer.
// Restocking does not publish a new announcement.
func (s *Service) SetQuantity(ctx context.Context, id int64, quantity int) (QuantityResult, error) {
	offer, err := s.repo.Get(ctx, id)
	if err != nil {
		return QuantityResult{}, err
	}

	if quantity == 0 {
		retire, err := s.retire(ctx, offer)
		if err != nil {
			return QuantityResult{}, err
		}
		return QuantityResult{Offer: retire.Offer, Retired: true, AnnouncementRemoved: retire.AnnouncementRemoved}, nil
	}

	if _, err := s.repo.UpdateQuantity(ctx, id, quantity); err != nil {
		return QuantityResult{}, err
	}
	if _, err := s.repo.SetActive(ctx, id, true); err != nil {
		return QuantityResult{}, err
	}
	offer.Quantity = quantity
	offer.Active = true
	return QuantityResult{Offer: offer}, nil
}

// SetPrice updates the canonical price text in place. Existing announcements
// keep their original text; re-announce is the explicit refresh path.
func (s *Service) SetPrice(ctx context.Context, id int64, price string) (Offer, error) {
	offer, err := s.repo.Get(ctx, id)
	if err != nil {
		return Offer{}, err
	}
	if _, err := s.repo.UpdatePrice(ctx, id, price); err != nil {
		return Offer{}, err
	}
	offer.Price = price
	return offer, nil
}

// RetireResult reports the outcome of Retire.
type RetireResult struct {
	Offer Offer
	// AnnouncementRemoved reports whether the bound announcement message was
	// deleted. Deletion is best-effort; failure does not block retirement.
	AnnouncementRemoved bool
}

// Retire marks an offer sold out: quantity zero, inactive, and a single
// best-effort delete attempt for the bound announcement, if any.
func (s *Service) Retire(ctx context.Context, id int64) (RetireResult, error) {
	offer, err := s.repo.Get(ctx, id)
	if err != nil {
		return RetireResult{}, err
	}
	return s.retire(ctx, offer)
}

func (s *Service) retire(ctx context.Context, offer Offer) (RetireResult, error) {
	if _, err := s.repo.UpdateQuantity(ctx, offer.ID, 0); err != nil {
		return RetireResult{}, err
	}
	if _, err := s.repo.SetActive(ctx, offer.ID, false); err != nil {
		return RetireResult{}, err
	}
	offer.Quantity = 0
	offer.Active = false

	res := RetireResult{Offer: offer}
	if offer.Announced() {
		if err := s.tr.Delete(ctx, offer.AnnounceChatID, offer.AnnounceMessageID); err != nil {
			logger.Warn(ctx, "service.offers", "announce.delete_failed",
				slog.Int64("offer_id", offer.ID),
				slog.Int64("chat_id", offer.AnnounceChatID),
				slog.String("err", err.Error()),
			)
		} else {
			res.AnnouncementRemoved = true
		}
	}
	return res, nil
}

// Reannounce publishes a fresh announcement for an active offer and rebinds
// the offer to the new message. The previous message, if any, is left alone.
func (s *Service) Reannounce(ctx context.Context, id int64, originChat int64) (Offer, error) {
	offer, err := s.repo.Get(ctx, id)
	if err != nil {
		return Offer{}, err
	}
	if !offer.Active {
		return Offer{}, ErrInactiveOffer
	}

	chatID := s.AnnounceChat(ctx, originChat)
	messageID, err := s.tr.Send(ctx, chatID, Announcement(offer, s.contact))
	if err != nil {
		logger.Warn(ctx, "service.offers", "announce.send_failed",
			slog.Int64("offer_id", offer.ID),
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		return Offer{}, err
	}
	if _, err := s.repo.AttachAnnouncement(ctx, offer.ID, chatID, messageID); err != nil {
		logger.Error(ctx, "service.offers", "announce.bind_failed",
			slog.Int64("offer_id", offer.ID),
			slog.String("err", err.Error()),
		)
	}
	offer.AnnounceChatID = chatID
	offer.AnnounceMessageID = messageID
	return offer, nil
}

// Get loads a single offer.
func (s *Service) Get(ctx context.Context, id int64) (Offer, error) {
	return s.repo.Get(ctx, id)
}

// Stock lists active offers, newest first.
func (s *Service) Stock(ctx context.Context) ([]Offer, error) {
	return s.repo.List(ctx, true)
}
