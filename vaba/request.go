package vaba

import (
	"net/url"
	"strconv"
	"time"
)

// Protocol constants shared by every call to the portal's single endpoint.
const (
	// DefaultBaseURL is the portal's proxy endpoint all operations go through.
	DefaultBaseURL = "https://wellness.vs.sparkleapp.sparkle.plus/proxy.php"

	// DefaultArticleID is the ticket article queried for availability.
	DefaultArticleID = "2948"

	// DefaultPartySize is the number of people per booking.
	DefaultPartySize = 1

	apiKey     = "43816A1657EC4FCB6E953B5BA3EEEen" // public key
	moduleName = "sparkleTicketingOnline"
	language   = "en"

	// The responder script dispatches on these. The slot query passes the
	// action as a separate parameter; login and moveTicket embed it inside
	// the file parameter. The portal requires both shapes verbatim.
	responderFile   = "ajaxResponder.php"
	loginFile       = "ajaxResponder.php?action=login"
	moveTicketFile  = "ajaxResponder.php?action=moveTicket"
	reservationFile = "userTermine.php"

	dateFormat = "2006-01-02"
	timeFormat = "15:04"
)

// baseQuery returns the constant query parameters every request carries.
func baseQuery() url.Values {
	return url.Values{
		"language": {language},
		"apikey":   {apiKey},
		"modul":    {moduleName},
	}
}

// slotQuery builds the public slot availability call for one calendar date.
func slotQuery(day time.Time, articleID string, partySize int) (query, form url.Values) {
	query = baseQuery()
	query.Set("file", responderFile)
	query.Set("action", "getPossibleUhrzeiten")

	form = url.Values{
		"datum":          {day.Format(dateFormat)},
		"bereich":        {""},
		"Artikel_ID":     {articleID},
		"anzahlPersonen": {strconv.Itoa(partySize)},
	}
	return query, form
}

// loginQuery builds the login exchange for a candidate session key.
func loginQuery(key, username, password string) (query, form url.Values) {
	query = baseQuery()
	query.Set("file", loginFile)
	query.Set("key", key)

	form = url.Values{
		"username": {username},
		"userpass": {password},
	}
	return query, form
}

// reservationListQuery builds the authenticated reservation listing call.
func reservationListQuery(token string) url.Values {
	query := baseQuery()
	query.Set("file", reservationFile)
	query.Set("key", token)
	return query
}

// moveTicketQuery builds the reschedule call for an existing reservation.
func moveTicketQuery(token string, reservationID int, ts time.Time) (query, form url.Values) {
	query = baseQuery()
	query.Set("file", moveTicketFile)
	query.Set("key", token)

	form = url.Values{
		"bereich":    {""},
		"modul":      {moduleName},
		"Termine_ID": {strconv.Itoa(reservationID)},
		"Datum":      {ts.Format(dateFormat)},
		"Uhrzeit":    {ts.Format(timeFormat)},
	}
	return query, form
}
