package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/invoice-reconciliation/internal/domain/hms"
	"github.com/invoice-reconciliation/internal/platform/persistence"
)

// HMSMappingRepository resolves vendor booking references from the hms_booking_mappings table
type HMSMappingRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewHMSMappingRepository creates a PostgreSQL backed HMS lookup
func NewHMSMappingRepository(logger *slog.Logger, db *persistence.PostgresDB) *HMSMappingRepository {
	return &HMSMappingRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Resolve returns the OMS booking id mapped to the vendor reference
func (r *HMSMappingRepository) Resolve(ctx context.Context, vendorCode, vendorBookingID string) (string, bool, error) {
	query := `
		SELECT oms_booking_id
		FROM hms_booking_mappings
		WHERE vendor_code = $1 AND vendor_booking_id = $2
	`

	var omsBookingID string
	err := r.querier.QueryRow(ctx, query, vendorCode, vendorBookingID).Scan(&omsBookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		r.logger.Error("Failed to resolve HMS mapping",
			"vendor_code", vendorCode,
			"vendor_booking_id", vendorBookingID,
			"error", err)
		return "", false, hms.ErrLookupUnavailable{VendorCode: vendorCode, VendorBookingID: vendorBookingID, Err: err}
	}

	return omsBookingID, true, nil
}

// Upsert stores or replaces a mapping
func (r *HMSMappingRepository) Upsert(ctx context.Context, m hms.Mapping) error {
	query := `
		INSERT INTO hms_booking_mappings (vendor_code, vendor_booking_id, oms_booking_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (vendor_code, vendor_booking_id) DO UPDATE SET oms_booking_id = EXCLUDED.oms_booking_id
	`

	if _, err := r.querier.Exec(ctx, query, m.VendorCode, m.VendorBookingID, m.OMSBookingID, m.CreatedAt); err != nil {
		r.logger.Error("Failed to upsert HMS mapping", "vendor_code", m.VendorCode, "vendor_booking_id", m.VendorBookingID, "error", err)
		return err
	}
	return nil
}
