package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"

	"clubpos/internal/apierror"
	"clubpos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false after writing the error response; the caller returns
// immediately.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return false
	}
	return validateStruct(c, req)
}

// bindQuery is bindAndValidate for query-string filters.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Parametros invalidos: "+err.Error()))
		return false
	}
	return validateStruct(c, req)
}

func validateStruct(c *gin.Context, req interface{}) bool {
	if err := validate.Struct(req); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			c.JSON(http.StatusUnprocessableEntity, apierror.New(err.Error()))
			return false
		}
		fields := make(map[string]string)
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// paramUUID parses a path parameter, writing 400 on failure.
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	if v, err := strconv.Atoi(c.Query(name)); err == nil {
		return v
	}
	return def
}

var statusPorError = []struct {
	err    error
	status int
}{
	{service.ErrCredencialesInvalidas, http.StatusUnauthorized},
	{service.ErrPairingInvalidoOExpirado, http.StatusUnauthorized},
	{service.ErrPINInvalido, http.StatusUnauthorized},
	{service.ErrEmpleadoNoEncontrado, http.StatusUnauthorized},
	{service.ErrDispositivoDesactivado, http.StatusUnauthorized},
	{service.ErrDispositivoNoEncontrado, http.StatusNotFound},
	{service.ErrSinDispositivoDisponible, http.StatusConflict},
	{service.ErrEmpleadoYaAsignado, http.StatusConflict},
	{service.ErrAsignacionPermanente, http.StatusConflict},
	{service.ErrCajaYaAbierta, http.StatusConflict},
	{service.ErrSesionCerrada, http.StatusConflict},
	{service.ErrSesionNoEncontrada, http.StatusNotFound},
	{service.ErrProductoNoEncontrado, http.StatusNotFound},
	{service.ErrObservacionesRequeridas, http.StatusUnprocessableEntity},
	{service.ErrAjusteDejaStockNegativo, http.StatusUnprocessableEntity},
	{service.ErrLoteExcedido, http.StatusRequestEntityTooLarge},
}

// respondError maps service sentinels to HTTP statuses. Anything else goes
// to ErrorHandler as a 500 so internals never reach the client.
func respondError(c *gin.Context, err error) {
	for _, m := range statusPorError {
		if errors.Is(err, m.err) {
			c.JSON(m.status, apierror.New(err.Error()))
			return
		}
	}
	_ = c.Error(err)
}
