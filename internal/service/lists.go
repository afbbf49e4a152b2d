package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/confhub/confbot/internal/domain"
	"github.com/confhub/confbot/internal/sharing"
)

const welcomeText = `Hi! I know everything about the conference.

Send me a question about the events, paste a shared list key, or use the menu to browse by tag, day or stage.`

// Start registers the user and lazily creates their private and public
// lists, then greets them.
func (s *Service) Start(ctx context.Context, chatID int64, username string) (*View, error) {
	user, err := s.store.UpsertUser(ctx, chatID, username)
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	if err := s.ensureLists(ctx, user); err != nil {
		return nil, err
	}
	return &View{Text: welcomeText}, nil
}

// ensureLists is idempotent: it creates the user's private and public list
// rows on first contact and is a no-op afterwards.
func (s *Service) ensureLists(ctx context.Context, user *domain.User) error {
	key := deriveListKey(user.ChatID)
	for _, v := range []struct {
		visibility domain.Visibility
		prefix     string
	}{
		{domain.VisibilityPrivate, "Priv"},
		{domain.VisibilityPublic, "Pub"},
	} {
		_, err := s.store.GetListByUser(ctx, user.ID, v.visibility)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("failed to load %s list: %w", v.visibility, err)
		}
		_, err = s.store.CreateList(ctx, &domain.EventList{
			UserID:     user.ID,
			Visibility: v.visibility,
			Name:       fmt.Sprintf("%s_%s", v.prefix, user.Username),
			SecretKey:  key,
		})
		if err != nil {
			return fmt.Errorf("failed to create %s list: %w", v.visibility, err)
		}
	}
	return nil
}

// deriveListKey produces the raw share key for a user's lists from the tail
// of the chat id. Short ids keep all their digits.
func deriveListKey(chatID int64) int64 {
	digits := strconv.FormatInt(chatID, 10)
	if len(digits) > 5 {
		digits = digits[5:]
	}
	key, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return chatID
	}
	return key
}

// MyEvents browses the user's own list of the given visibility. The private
// list carries the list-ownership flag so paging keeps the share row.
func (s *Service) MyEvents(ctx context.Context, chatID int64, visibility domain.Visibility) (*View, error) {
	_, list, err := s.userList(ctx, chatID, visibility)
	if err != nil {
		return nil, err
	}
	ids := list.Members()
	if len(ids) == 0 {
		return &View{Text: "Your list is empty. Save events from any search with the ❤️ button."}, nil
	}
	return s.renderResults(ctx, chatID, ids, "", visibility == domain.VisibilityPrivate)
}

// EventDetail renders the extended single-event view with a membership
// toggle against the user's private list and a back button.
func (s *Service) EventDetail(ctx context.Context, chatID, eventID int64) (*View, error) {
	text, err := s.formatter.ExtendedInfo(ctx, eventID)
	if err != nil {
		return nil, err
	}

	_, list, err := s.userList(ctx, chatID, domain.VisibilityPrivate)
	if err != nil {
		return nil, err
	}

	toggle := domain.Action{Label: "Add to my list ❤️", Data: domain.AddToListPayload(eventID, list.ID)}
	if list.Members().Contains(eventID) {
		toggle = domain.Action{Label: "Remove from my list 💔", Data: domain.RemoveFromListPayload(eventID, list.ID)}
	}

	return &View{
		Text: text,
		Keyboard: domain.Keyboard{
			{toggle},
			{{Label: "⬅ Back", Data: domain.PayloadBackToList}},
		},
		Edit: true,
	}, nil
}

// MutateList adds or removes one event in a list the user owns, then
// re-renders the detail view so the toggle reflects the new state.
func (s *Service) MutateList(ctx context.Context, chatID, eventID, listID int64, add bool) (*View, error) {
	user, err := s.store.GetUserByChatID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to load list %d: %w", listID, err)
	}
	if list.UserID != user.ID {
		return nil, fmt.Errorf("list %d is not owned by chat %d: %w", listID, chatID, domain.ErrNotFound)
	}

	members := list.Members()
	if add {
		members = members.Add(eventID)
	} else {
		members = members.Remove(eventID)
	}
	if err := s.store.SetListEventIDs(ctx, listID, members.String()); err != nil {
		return nil, fmt.Errorf("failed to update list %d: %w", listID, err)
	}

	return s.EventDetail(ctx, chatID, eventID)
}

// ShareKey hands the user the encoded share key of their private list.
func (s *Service) ShareKey(ctx context.Context, chatID int64) (*View, error) {
	_, list, err := s.userList(ctx, chatID, domain.VisibilityPrivate)
	if err != nil {
		return nil, err
	}
	return &View{
		Text: fmt.Sprintf("Send this key to a friend. Pasting it into the chat opens your list:\n\n%s", sharing.EncodeKey(list.SecretKey)),
	}, nil
}

// ResolveSharedKey looks up a pasted share key and browses the list behind
// it. A malformed key and an unmatched key both surface as
// domain.ErrNotFound so the caller cannot tell them apart.
func (s *Service) ResolveSharedKey(ctx context.Context, chatID int64, text string) (*View, error) {
	key, err := sharing.DecodeKey(text)
	if err != nil {
		return nil, fmt.Errorf("share key rejected: %w", err)
	}
	list, err := s.store.GetListBySecretKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("share key lookup: %w", err)
	}

	ids := list.Members()
	if len(ids) == 0 {
		return &View{Text: "This shared list is empty."}, nil
	}

	view, err := s.renderResults(ctx, chatID, ids, "", false)
	if err != nil {
		return nil, err
	}

	// Viewers can star the list; the label reflects current membership.
	user, err := s.store.GetUserByChatID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	star := domain.Action{Label: "Add to favorites ⭐", Data: domain.FavoritePayload(list.ID)}
	if domain.ParseIDSet(user.FavoriteListIDs).Contains(list.ID) {
		star = domain.Action{Label: "Remove from favorites ✖", Data: domain.FavoritePayload(list.ID)}
	}
	view.Keyboard = append(view.Keyboard, []domain.Action{star})
	return view, nil
}

// ToggleFavorite stars or unstars a shared list for the user. Membership is
// exact-token, so toggling twice always restores the original set.
func (s *Service) ToggleFavorite(ctx context.Context, chatID, listID int64) (*View, error) {
	user, err := s.store.GetUserByChatID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	favorites := domain.ParseIDSet(user.FavoriteListIDs)
	text := "List added to your favorites ⭐"
	if favorites.Contains(listID) {
		favorites = favorites.Remove(listID)
		text = "List removed from your favorites."
	} else {
		favorites = favorites.Add(listID)
	}
	if err := s.store.SetFavoriteListIDs(ctx, user.ID, favorites.String()); err != nil {
		return nil, fmt.Errorf("failed to save favorites: %w", err)
	}
	return &View{Text: text}, nil
}

// Favorites browses the lists the user has starred.
func (s *Service) Favorites(ctx context.Context, chatID int64) (*View, error) {
	user, err := s.store.GetUserByChatID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	listIDs := domain.ParseIDSet(user.FavoriteListIDs)
	if len(listIDs) == 0 {
		return &View{Text: "You have no favorite lists yet. Paste a shared key to star one."}, nil
	}

	rows := make(domain.Keyboard, 0, len(listIDs))
	for _, id := range listIDs {
		list, err := s.store.GetList(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load list %d: %w", id, err)
		}
		rows = append(rows, []domain.Action{{Label: list.Name, Data: domain.ShowListPayload(list.ID)}})
	}
	if len(rows) == 0 {
		return &View{Text: "Your favorite lists no longer exist."}, nil
	}
	return &View{Text: "Your favorite lists:", Keyboard: rows}, nil
}

// ShowList browses a starred list by id.
func (s *Service) ShowList(ctx context.Context, chatID, listID int64) (*View, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to load list %d: %w", listID, err)
	}
	ids := list.Members()
	if len(ids) == 0 {
		return &View{Text: "This list is empty."}, nil
	}
	return s.renderResults(ctx, chatID, ids, "", false)
}

func (s *Service) userList(ctx context.Context, chatID int64, visibility domain.Visibility) (*domain.User, *domain.EventList, error) {
	user, err := s.store.GetUserByChatID(ctx, chatID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	list, err := s.store.GetListByUser(ctx, user.ID, visibility)
	if errors.Is(err, domain.ErrNotFound) {
		// First contact may have skipped /start; create the rows now.
		if err := s.ensureLists(ctx, user); err != nil {
			return nil, nil, err
		}
		list, err = s.store.GetListByUser(ctx, user.ID, visibility)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load %s list: %w", visibility, err)
	}
	return user, list, nil
}
