package subsidy

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// unknownItemName подставляется вместо отсутствующего названия позиции.
const unknownItemName = "unknown item"

// Result — каноническое нормализованное представление ответа внешнего API.
// Система субсидий исторически отдаёт поля под разными именами и не всегда
// заполняет агрегаты, поэтому Result собирается экстрактором с
// фиксированными значениями по умолчанию.
type Result struct {
	Valid         bool            `json:"valid"`
	Message       string          `json:"message"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	EmployeeShare decimal.Decimal `json:"employeeShare"`
	EmployerShare decimal.Decimal `json:"employerShare"`
	BalanceBefore decimal.Decimal `json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	LineItems     []LineItem      `json:"lineItems"`
	User          UserInfo        `json:"user"`

	// Идентификатор транзакции дублируется под старыми ключами,
	// которые продолжают читать существующие потребители.
	TransactionID      string `json:"transactionId,omitempty"`
	TransactionIDAlias string `json:"idTransaction,omitempty"`
	LegacyID           string `json:"id,omitempty"`
}

// LineItem — позиция заказа в нормализованном ответе.
type LineItem struct {
	ExternalID           int64           `json:"externalId"`
	Name                 string          `json:"name"`
	Quantity             decimal.Decimal `json:"quantity"`
	UnitPrice            decimal.Decimal `json:"unitPrice"`
	TotalAmount          decimal.Decimal `json:"totalAmount"`
	SubsidyAmount        decimal.Decimal `json:"subsidyAmount"`
	EmployeeShare        decimal.Decimal `json:"employeeShare"`
	SubsidizedQuantity   decimal.Decimal `json:"subsidizedQuantity"`
	UnsubsidizedQuantity decimal.Decimal `json:"unsubsidizedQuantity"`
}

// UserInfo — сведения о сотруднике, вернувшиеся от системы субсидий.
type UserInfo struct {
	LastName  string `json:"lastName"`
	FirstName string `json:"firstName"`
	Email     string `json:"email"`
	Category  string `json:"category"`
	FullName  string `json:"fullName"`
}

// extractResult нормализует тело успешного ответа внешнего API.
// Никогда не возвращает ошибку: при любом внутреннем сбое отдаёт
// минимальный результат, чтобы сбой разбора не сорвал оформление продажи.
func extractResult(body map[string]any) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = minimalResult(body)
		}
	}()

	res = minimalResult(body)

	// Прямые поля. API v2 отдаёт amountCharged/remainingBalance, более
	// ранние ревизии — старые французские ключи; проверяем оба варианта.
	if v, ok := lookup(body, "amountCharged", "partSalariale"); ok {
		res.EmployeeShare = toDecimal(v)
	}
	if v, ok := lookup(body, "remainingBalance", "nouveauSolde"); ok {
		res.BalanceAfter = toDecimal(v)
	}
	if v, ok := lookup(body, "totalAmount", "montantTotal"); ok {
		res.TotalAmount = toDecimal(v)
	}
	if v, ok := lookup(body, "employerShare", "partPatronale"); ok {
		res.EmployerShare = toDecimal(v)
	}
	if v, ok := lookup(body, "balanceBefore", "soldeActuel"); ok {
		res.BalanceBefore = toDecimal(v)
	}

	res.User = UserInfo{
		LastName:  stringField(body, "lastName", "utilisateurNom"),
		FirstName: stringField(body, "firstName", "utilisateurPrenom"),
		Email:     stringField(body, "email", "utilisateurEmail"),
		Category:  stringField(body, "category", "utilisateurCategorie"),
		FullName:  stringField(body, "fullName", "utilisateurNomComplet"),
	}

	if v, ok := lookup(body, "transactionId"); ok {
		id := toString(v)
		res.TransactionID = id
		res.TransactionIDAlias = id
		res.LegacyID = id
	}

	if items, ok := lookup(body, "lineItems", "articles"); ok {
		if list, ok := items.([]any); ok {
			for _, raw := range list {
				item, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				res.LineItems = append(res.LineItems, extractLineItem(item))
			}
		}
	}

	// Ранние ревизии API не заполняют агрегаты: восстанавливаем их
	// простой суммой по позициям.
	if res.TotalAmount.IsZero() && len(res.LineItems) > 0 {
		total := decimal.Zero
		subsidy := decimal.Zero
		for _, item := range res.LineItems {
			total = total.Add(item.TotalAmount)
			subsidy = subsidy.Add(item.SubsidyAmount)
		}

		res.TotalAmount = total
		res.EmployerShare = subsidy

		if res.EmployeeShare.IsZero() {
			res.EmployeeShare = total.Sub(subsidy)
		}
		if res.BalanceBefore.IsZero() {
			res.BalanceBefore = res.BalanceAfter.Add(res.EmployeeShare)
		}
	}

	return res
}

// minimalResult — результат деградации: валидность по полю status,
// остальные поля с значениями по умолчанию.
func minimalResult(body map[string]any) Result {
	return Result{
		Valid:   stringField(body, "status") == "success",
		Message: stringField(body, "message"),
	}
}

func extractLineItem(item map[string]any) LineItem {
	out := LineItem{
		Name:                 unknownItemName,
		Quantity:             toDecimal(fieldOr(item, nil, "quantity", "quantite")),
		UnitPrice:            toDecimal(fieldOr(item, nil, "unitPrice", "prixUnitaire")),
		TotalAmount:          toDecimal(fieldOr(item, nil, "totalAmount", "montantTotal")),
		SubsidyAmount:        toDecimal(fieldOr(item, nil, "subsidyAmount", "subventionTotale")),
		EmployeeShare:        toDecimal(fieldOr(item, nil, "employeeShare", "partSalariale")),
		SubsidizedQuantity:   toDecimal(fieldOr(item, nil, "subsidizedQuantity", "quantiteAvecSubvention")),
		UnsubsidizedQuantity: toDecimal(fieldOr(item, nil, "unsubsidizedQuantity", "quantiteSansSubvention")),
	}

	if v, ok := lookup(item, "externalId", "odooId"); ok {
		out.ExternalID = toInt(v)
	}
	if name := stringField(item, "name", "nom"); name != "" {
		out.Name = name
	}

	return out
}

// lookup возвращает значение первого присутствующего ключа.
func lookup(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func fieldOr(m map[string]any, def any, keys ...string) any {
	if v, ok := lookup(m, keys...); ok {
		return v
	}
	return def
}

func stringField(m map[string]any, keys ...string) string {
	v, ok := lookup(m, keys...)
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// toDecimal приводит значение произвольного JSON-типа к decimal.
// Строки с запятой в роли десятичного разделителя принимаются;
// неразбираемые значения дают 0, а не ошибку.
func toDecimal(v any) decimal.Decimal {
	switch val := v.(type) {
	case nil:
		return decimal.Zero
	case float64:
		return decimal.NewFromFloat(val)
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case string:
		d, err := decimal.NewFromString(strings.ReplaceAll(val, ",", "."))
		if err != nil {
			return decimal.Zero
		}
		return d
	case map[string]any:
		// Некоторые ревизии API заворачивают числа в {"doubleValue": x}.
		if inner, ok := val["doubleValue"]; ok {
			return toDecimal(inner)
		}
		return decimal.Zero
	default:
		return decimal.Zero
	}
}

func toInt(v any) int64 {
	switch val := v.(type) {
	case float64:
		return int64(val)
	case int:
		return int64(val)
	case int64:
		return val
	case string:
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func toString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
