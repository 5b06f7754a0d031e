package pages

import "github.com/ternarybob/uitest/internal/interfaces"

// Selectors on the login page and the inventory header shown after login
const (
	SelectorUsername     = "#user-name"
	SelectorPassword     = "#password"
	SelectorLoginButton  = "#login-button"
	SelectorErrorMessage = "[data-test='error']"
	SelectorAppLogo      = ".app_logo"
	SelectorBurgerMenu   = "#react-burger-menu-btn"
)

// LoginPage holds locators only. Behaviour lives in steps.LoginSteps.
type LoginPage struct {
	page interfaces.Page
}

func NewLoginPage(page interfaces.Page) *LoginPage {
	return &LoginPage{page: page}
}

func (p *LoginPage) UsernameInput() interfaces.Locator { return p.page.Locator(SelectorUsername) }
func (p *LoginPage) PasswordInput() interfaces.Locator { return p.page.Locator(SelectorPassword) }
func (p *LoginPage) LoginButton() interfaces.Locator   { return p.page.Locator(SelectorLoginButton) }
func (p *LoginPage) ErrorMessage() interfaces.Locator  { return p.page.Locator(SelectorErrorMessage) }
func (p *LoginPage) AppLogo() interfaces.Locator       { return p.page.Locator(SelectorAppLogo) }
func (p *LoginPage) BurgerMenu() interfaces.Locator    { return p.page.Locator(SelectorBurgerMenu) }
