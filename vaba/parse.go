package vaba

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Literal phrases the portal answers with. The backend is German; the
// classification below depends on these strings verbatim.
const (
	noPermissionMessage  = "Keine Rechte zum verschieben."
	slotTakenMessage     = "Ausgewählter Termin nicht mehr frei verfügbar."
	wrongCredentialsMark = "Username and/or password are incorrect"

	defaultLoginMessage = "Can't login"
	defaultMoveMessage  = "Can't update reservation"
)

type slotEnvelope struct {
	Data struct {
		Uhrzeiten json.RawMessage `json:"uhrzeiten"`
	} `json:"data"`
}

// parseSlots interprets the slot query response for the given calendar day.
// The portal answers with a time→capacity object; fully booked entries are
// dropped and the portal's own ordering is kept.
func parseSlots(day time.Time, body []byte) ([]Slot, error) {
	var envelope slotEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse slot response: %w", err)
	}

	raw := bytes.TrimSpace(envelope.Data.Uhrzeiten)
	// Nothing bookable arrives as null or an empty array instead of an
	// object.
	if len(raw) == 0 || raw[0] != '{' {
		return nil, nil
	}

	// encoding/json map decoding would lose the portal's ordering, so walk
	// the object tokens instead.
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to parse slot times: %w", err)
	}

	var slots []Slot
	for dec.More() {
		keyToken, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to parse slot times: %w", err)
		}
		key, ok := keyToken.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token in slot times: %v", keyToken)
		}

		var count int
		if err := dec.Decode(&count); err != nil {
			return nil, fmt.Errorf("invalid capacity for slot %q: %w", key, err)
		}
		if count <= 0 {
			continue
		}

		ts, err := combineDayTime(day, key)
		if err != nil {
			return nil, err
		}
		slots = append(slots, Slot{Timestamp: ts, Count: count})
	}

	return slots, nil
}

// combineDayTime merges an "HH:MM" string with the queried calendar date.
func combineDayTime(day time.Time, clock string) (time.Time, error) {
	t, err := time.Parse(timeFormat, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid slot time %q: %w", clock, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

// parseReservations extracts the user's bookings from the server-rendered
// HTML fragment, sorted ascending by timestamp. The portal answers an
// invalid session with an empty body, which must not be confused with
// "no reservations" — that case is a non-empty body with zero blocks.
func parseReservations(body []byte) ([]Reservation, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrNotAuthorized
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse reservation list: %w", err)
	}

	var reservations []Reservation
	var parseErr error

	doc.Find(".anwendungswrap").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		domID, ok := sel.Attr("id")
		if !ok {
			parseErr = fmt.Errorf("reservation block without id attribute")
			return false
		}

		reservation, err := parseReservationBlock(domID, sel)
		if err != nil {
			parseErr = err
			return false
		}

		reservations = append(reservations, reservation)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	sort.Slice(reservations, func(i, j int) bool {
		return reservations[i].Timestamp.Before(reservations[j].Timestamp)
	})

	return reservations, nil
}

// parseReservationBlock reads one reservation list item. The DOM id is a
// composite like "TicketingTermine_ID_100500" with the reservation id as
// the trailing field. The schedule line under ".uhrzeit" reads
// "Montag, 03.02.2025, 09:00" — a localized weekday name, then the date,
// then the time.
func parseReservationBlock(domID string, sel *goquery.Selection) (Reservation, error) {
	parts := strings.Split(domID, "_")
	if len(parts) < 3 {
		return Reservation{}, fmt.Errorf("unexpected reservation block id %q", domID)
	}
	id, err := strconv.Atoi(parts[2])
	if err != nil {
		return Reservation{}, fmt.Errorf("unexpected reservation block id %q: %w", domID, err)
	}

	fields := strings.Split(sel.Find(".uhrzeit").First().Text(), ",")
	if len(fields) < 3 {
		return Reservation{}, fmt.Errorf("unexpected schedule text for reservation %d", id)
	}

	date := strings.TrimSpace(fields[1])
	clock := strings.TrimSpace(fields[2])

	ts, err := time.Parse("02.01.2006 15:04", date+" "+clock)
	if err != nil {
		return Reservation{}, fmt.Errorf("unexpected schedule %q for reservation %d: %w", date+" "+clock, id, err)
	}

	return Reservation{ID: id, Timestamp: ts}, nil
}

type loginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// parseLoginResult classifies the login response. A rejection naming wrong
// credentials is terminal; anything else becomes a generic login failure
// carrying the portal's message.
func parseLoginResult(body []byte) error {
	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse login response: %w", err)
	}

	if resp.Success {
		return nil
	}

	if strings.Contains(resp.Message, wrongCredentialsMark) {
		return ErrWrongCredentials
	}

	message := resp.Message
	if message == "" {
		message = defaultLoginMessage
	}
	return &OperationError{Op: "login", Message: message}
}

type moveResponse struct {
	Success bool    `json:"success"`
	Data    *string `json:"data"`
	Message string  `json:"message"`
}

// parseMoveResult classifies the reschedule response. Success with an empty
// data field is the only positive outcome; a successful envelope carrying
// the slot-taken phrase means the target slot was booked away in the
// meantime.
func parseMoveResult(body []byte) error {
	var resp moveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse reschedule response: %w", err)
	}

	if !resp.Success {
		if resp.Message == noPermissionMessage {
			return ErrReservationNotFound
		}
		message := resp.Message
		if message == "" {
			message = defaultMoveMessage
		}
		return &OperationError{Op: "reschedule", Message: message}
	}

	switch {
	case resp.Data == nil:
		return &OperationError{Op: "reschedule", Message: defaultMoveMessage}
	case *resp.Data == slotTakenMessage:
		return ErrTimeSlotUnavailable
	case *resp.Data == "":
		return nil
	default:
		return &OperationError{Op: "reschedule", Message: fmt.Sprintf("unexpected response data: %s", *resp.Data)}
	}
}
