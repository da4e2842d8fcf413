package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hostel-bed-allocation/internal/lifecycle"
	"github.com/iliyamo/hostel-bed-allocation/internal/model"
)

// ResidentForm is the resident part of the booking form.  It binds from
// multipart, urlencoded or JSON bodies.
type ResidentForm struct {
	StudentName          string `form:"student_name" json:"student_name" validate:"required,max=120"`
	FatherName           string `form:"father_name" json:"father_name" validate:"max=120"`
	CNIC                 string `form:"cnic" json:"cnic" validate:"required,max=20"`
	Contact              string `form:"contact" json:"contact" validate:"required,max=20"`
	Email                string `form:"email" json:"email" validate:"required,email"`
	Profession           string `form:"profession" json:"profession" validate:"max=120"`
	InstituteName        string `form:"institute_name" json:"institute_name" validate:"max=200"`
	EmergencyContactName string `form:"emergency_contact_name" json:"emergency_contact_name" validate:"max=120"`
	EmergencyContact     string `form:"emergency_contact" json:"emergency_contact" validate:"max=20"`
	Address              string `form:"address" json:"address" validate:"max=500"`
	CheckInDate          string `form:"check_in_date" json:"check_in_date" validate:"omitempty,datetime=2006-01-02"`
	HasVehicle           string `form:"has_vehicle" json:"has_vehicle"`
	VehicleType          string `form:"vehicle_type" json:"vehicle_type" validate:"max=40"`
	VehicleNumber        string `form:"vehicle_number" json:"vehicle_number" validate:"max=40"`
}

type submitForm struct {
	ResidentForm
	BedID string `form:"bed_id" json:"bed_id" validate:"required"`
}

type editForm struct {
	ResidentForm
	BedID string `form:"bed_id" json:"bed_id"`
}

func formFromResident(r model.Resident) ResidentForm {
	return ResidentForm{
		StudentName:          r.StudentName,
		FatherName:           r.FatherName,
		CNIC:                 r.CNIC,
		Contact:              r.Contact,
		Email:                r.Email,
		Profession:           r.Profession,
		InstituteName:        r.InstituteName,
		EmergencyContactName: r.EmergencyContactName,
		EmergencyContact:     r.EmergencyContact,
		Address:              r.Address,
		CheckInDate:          r.CheckInDate,
		HasVehicle:           fmt.Sprint(r.HasVehicle),
		VehicleType:          r.VehicleType,
		VehicleNumber:        r.VehicleNumber,
	}
}

func (f ResidentForm) resident() model.Resident {
	r := model.Resident{
		StudentName:          strings.TrimSpace(f.StudentName),
		FatherName:           strings.TrimSpace(f.FatherName),
		CNIC:                 strings.TrimSpace(f.CNIC),
		Contact:              strings.TrimSpace(f.Contact),
		Email:                strings.ToLower(strings.TrimSpace(f.Email)),
		Profession:           strings.TrimSpace(f.Profession),
		InstituteName:        strings.TrimSpace(f.InstituteName),
		EmergencyContactName: strings.TrimSpace(f.EmergencyContactName),
		EmergencyContact:     strings.TrimSpace(f.EmergencyContact),
		Address:              strings.TrimSpace(f.Address),
		CheckInDate:          strings.TrimSpace(f.CheckInDate),
		HasVehicle:           truthy(f.HasVehicle),
	}
	if r.HasVehicle {
		r.VehicleType = strings.TrimSpace(f.VehicleType)
		r.VehicleNumber = strings.TrimSpace(f.VehicleNumber)
	}
	return r
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

var errUploadTooLarge = errors.New("upload too large")

// collectUploads opens every document file present in a multipart request.
// The returned closer must be called once the uploads have been consumed.
// Non-multipart requests carry no uploads.
func collectUploads(c echo.Context, maxBytes int64) ([]lifecycle.Upload, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil, noop, nil
	}
	var (
		uploads []lifecycle.Upload
		files   []multipart.File
	)
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	for _, field := range model.DocumentFields {
		fh, err := c.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			closeAll()
			return nil, noop, fmt.Errorf("%s: %w", field, err)
		}
		if maxBytes > 0 && fh.Size > maxBytes {
			closeAll()
			return nil, noop, fmt.Errorf("%s: %w (limit %d bytes)", field, errUploadTooLarge, maxBytes)
		}
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, noop, fmt.Errorf("%s: %w", field, err)
		}
		files = append(files, f)
		uploads = append(uploads, lifecycle.Upload{
			Field:       field,
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Body:        f,
		})
	}
	return uploads, closeAll, nil
}
