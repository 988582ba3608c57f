package utils

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/internal/repositories"
)

// ImportResult summarises one CSV user import
type ImportResult struct {
	TotalRows          int      `json:"totalRows"`
	UsersCreated       int      `json:"usersCreated"`
	UsersUpdated       int      `json:"usersUpdated"`
	PreferencesWritten int      `json:"preferencesWritten"`
	Errors             []string `json:"errors"`
}

func (r *ImportResult) addError(row int, format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf("Row %d: ", row)+fmt.Sprintf(format, args...))
}

// UserImporter loads users and their channel preferences from CSV exports
type UserImporter struct {
	userRepo repositories.UserRepository
	prefRepo repositories.PreferenceRepository
	now      func() time.Time
}

// NewUserImporter creates a new UserImporter
func NewUserImporter(userRepo repositories.UserRepository, prefRepo repositories.PreferenceRepository) *UserImporter {
	return &UserImporter{userRepo: userRepo, prefRepo: prefRepo, now: time.Now}
}

type importColumns struct {
	name, email, phone, role, city, state, lastLogin int
	optIn                                            map[models.Channel]int
}

// Import reads the header row, then creates or updates one user per row.
// Users are matched on email or phone. A bad row is recorded and skipped.
func (i *UserImporter) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := importColumns{
		name:      findColumnIndex(header, []string{"Name", "Full Name"}),
		email:     findColumnIndex(header, []string{"Email", "Email Address"}),
		phone:     findColumnIndex(header, []string{"Phone", "Phone Number", "Mobile"}),
		role:      findColumnIndex(header, []string{"Role"}),
		city:      findColumnIndex(header, []string{"City"}),
		state:     findColumnIndex(header, []string{"State"}),
		lastLogin: findColumnIndex(header, []string{"Last Login", "LastLogin"}),
		optIn: map[models.Channel]int{
			models.ChannelWebPush:  findColumnIndex(header, []string{"Web Push Opt-In", "WebPush"}),
			models.ChannelEmail:    findColumnIndex(header, []string{"Email Opt-In"}),
			models.ChannelWhatsApp: findColumnIndex(header, []string{"WhatsApp Opt-In", "WhatsApp"}),
			models.ChannelSMS:      findColumnIndex(header, []string{"SMS Opt-In", "SMS"}),
		},
	}
	if cols.email == -1 && cols.phone == -1 {
		return nil, errors.New("CSV needs an Email or Phone column")
	}

	result := &ImportResult{Errors: []string{}}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		result.TotalRows++
		rowNum := result.TotalRows
		if err != nil {
			result.addError(rowNum, "failed to read row: %v", err)
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		i.importRow(ctx, cols, row, rowNum, result)
	}
	return result, nil
}

func (i *UserImporter) importRow(ctx context.Context, cols importColumns, row []string, rowNum int, result *ImportResult) {
	email := strings.ToLower(cell(row, cols.email))
	phone := cleanPhone(cell(row, cols.phone))
	if email == "" && phone == "" {
		result.addError(rowNum, "no email or phone found")
		return
	}

	role := models.RoleUser
	if raw := strings.ToLower(cell(row, cols.role)); raw != "" {
		role = models.Role(raw)
		if !role.IsValid() || role == models.RoleEveryone {
			result.addError(rowNum, "invalid role %q", raw)
			return
		}
	}

	var lastLogin *time.Time
	if raw := cell(row, cols.lastLogin); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			result.addError(rowNum, "invalid last login %q", raw)
			return
		}
		lastLogin = &parsed
	}

	now := i.now()
	user, err := i.userRepo.FindByEmailOrPhone(ctx, email, phone)
	switch {
	case err == nil:
		applyImportedFields(user, cell(row, cols.name), email, phone, role, cell(row, cols.city), cell(row, cols.state), lastLogin)
		if err := i.userRepo.Update(ctx, user); err != nil {
			result.addError(rowNum, "failed to update user: %v", err)
			return
		}
		result.UsersUpdated++
	case errors.Is(err, repositories.ErrNotFound):
		user = &models.User{CreatedAt: now}
		applyImportedFields(user, cell(row, cols.name), email, phone, role, cell(row, cols.city), cell(row, cols.state), lastLogin)
		user.UpdatedAt = now
		if err := i.userRepo.Create(ctx, user); err != nil {
			result.addError(rowNum, "failed to create user: %v", err)
			return
		}
		result.UsersCreated++
	default:
		result.addError(rowNum, "failed to look up user: %v", err)
		return
	}

	prefs, set := parseOptIns(row, cols.optIn)
	if !set || i.prefRepo == nil {
		return
	}
	pref := &models.NotificationPreference{UserID: user.ID, Channels: prefs, UpdatedAt: now}
	if err := i.prefRepo.Upsert(ctx, pref); err != nil {
		result.addError(rowNum, "failed to store preferences: %v", err)
		return
	}
	result.PreferencesWritten++
}

func applyImportedFields(user *models.User, name, email, phone string, role models.Role, city, state string, lastLogin *time.Time) {
	if name != "" {
		user.Name = name
	}
	if email != "" {
		user.Email = email
	}
	if phone != "" {
		user.Phone = phone
	}
	user.Role = role
	if city != "" {
		user.Address.City = city
	}
	if state != "" {
		user.Address.State = state
	}
	if lastLogin != nil {
		user.LastLogin = lastLogin
	}
}

// parseOptIns reads the per-channel opt-in columns. Blank cells stay unset.
func parseOptIns(row []string, cols map[models.Channel]int) (models.ChannelPreferences, bool) {
	var prefs models.ChannelPreferences
	found := false
	for channel, idx := range cols {
		raw := strings.ToLower(cell(row, idx))
		if raw == "" {
			continue
		}
		enabled := raw == "yes" || raw == "true" || raw == "1" || raw == "y"
		switch channel {
		case models.ChannelWebPush:
			prefs.WebPush = &enabled
		case models.ChannelEmail:
			prefs.Email = &enabled
		case models.ChannelWhatsApp:
			prefs.WhatsApp = &enabled
		case models.ChannelSMS:
			prefs.SMS = &enabled
		}
		found = true
	}
	return prefs, found
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// findColumnIndex finds the index of a column by possible names
func findColumnIndex(header []string, possibleNames []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, name := range possibleNames {
			if strings.ToLower(name) == h {
				return i
			}
		}
	}
	return -1
}

// cleanPhone keeps the digits and adds the 91 country code to bare
// ten-digit mobile numbers.
func cleanPhone(phone string) string {
	phone = strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	switch {
	case len(phone) == 11 && phone[0] == '0':
		phone = "91" + phone[1:]
	case len(phone) == 10:
		phone = "91" + phone
	}
	return phone
}

// parseDate parses a date string in various formats
func parseDate(dateStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)

	formats := []string{
		time.RFC3339,
		"2006-01-02",
		"02/01/2006",
		"2 Jan 2006",
		"2006-01-02 15:04:05",
		"02/01/2006 15:04:05",
	}

	for _, format := range formats {
		date, err := time.Parse(format, dateStr)
		if err == nil {
			return date, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}
